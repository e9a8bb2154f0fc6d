// Package model holds minimal openEPD document types which can be stored in
// a bundle. Only the fields needed to identify and link documents are
// modeled.
package model

import "github.com/cchangelabs/openepd/bundle"

// Org is a company or other organization.
type Org struct {
	ID       string   `json:"id,omitempty" cbor:"id,omitempty"`
	Name     string   `json:"name" cbor:"name"`
	AltNames []string `json:"alt_names,omitempty" cbor:"alt_names,omitempty"`
	Website  string   `json:"website,omitempty" cbor:"website,omitempty"`
}

func (Org) AssetType() bundle.AssetType { return bundle.AssetOrg }

// Pcr is a product category rule.
type Pcr struct {
	ID          string            `json:"id,omitempty" cbor:"id,omitempty"`
	Name        string            `json:"name" cbor:"name"`
	Version     string            `json:"version,omitempty" cbor:"version,omitempty"`
	IssuedBy    *Org              `json:"issuer,omitempty" cbor:"issuer,omitempty"`
	DateOfIssue string            `json:"date_of_issue,omitempty" cbor:"date_of_issue,omitempty"`
	ValidUntil  string            `json:"valid_until,omitempty" cbor:"valid_until,omitempty"`
	Extra       map[string]string `json:"ext,omitempty" cbor:"ext,omitempty"`
}

func (Pcr) AssetType() bundle.AssetType { return bundle.AssetPcr }

// Epd is an environmental product declaration.
type Epd struct {
	ID           string            `json:"id,omitempty" cbor:"id,omitempty"`
	ProductName  string            `json:"product_name" cbor:"product_name"`
	DeclaredUnit string            `json:"declared_unit,omitempty" cbor:"declared_unit,omitempty"`
	Manufacturer *Org              `json:"manufacturer,omitempty" cbor:"manufacturer,omitempty"`
	Pcr          *Pcr              `json:"pcr,omitempty" cbor:"pcr,omitempty"`
	Language     string            `json:"language,omitempty" cbor:"language,omitempty"`
	GWP          float64           `json:"gwp,omitempty" cbor:"gwp,omitempty"`
	Extra        map[string]string `json:"ext,omitempty" cbor:"ext,omitempty"`
}

func (Epd) AssetType() bundle.AssetType { return bundle.AssetEpd }
