//go:build s3

package store_test

// Tests the S3 store against an external service. Can use amazon s3, or a
// local service with the same API (e.g. Minio).
//
//    env "AWS_ACCESS_KEY_ID=XXXXX" "AWS_SECRET_ACCESS_KEY=YYYY" go test -tags=s3 -run S3

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cchangelabs/openepd/store"
	"github.com/cchangelabs/openepd/store/storetest"
)

func getSession(t *testing.T) *session.Session {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String("http://localhost:9000"),
		Region:           aws.String("us-east-1"),
		DisableSSL:       aws.Bool(true),
		S3ForcePathStyle: aws.Bool(true),
	})
	require.NoError(t, err)
	return sess
}

func TestS3Conformance(t *testing.T) {
	s := store.NewS3("bundles", "test/", getSession(t), zap.NewNop())
	storetest.Conformance(t, s, "")
}

func TestS3Stress(t *testing.T) {
	s := store.NewS3("bundles", "stress/", getSession(t), zap.NewNop())
	storetest.Stress(t, s, 0)
}
