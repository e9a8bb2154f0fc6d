package bundle

// manifestSchemaV1 describes the required shape of a 1.x manifest.
// Additional properties are allowed everywhere so minor versions may add
// fields without breaking older readers.
const manifestSchemaV1 = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["format_version", "created_date", "assets", "relations"],
  "properties": {
    "format": {"type": "string"},
    "format_version": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+$"},
    "created_date": {"type": "string", "format": "date-time"},
    "generator": {"type": "string"},
    "comment": {"type": "string"},
    "bundle_id": {"type": "string"},
    "stats": {"type": "object"},
    "assets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "is_root", "content_kind", "storage_ref"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "is_root": {"type": "boolean"},
          "content_kind": {"enum": ["object", "blob"]},
          "media_type": {"type": "string"},
          "display_name": {"type": "string"},
          "language": {"type": "string"},
          "comment": {"type": "string"},
          "custom_type": {"type": "string"},
          "custom_data": {"type": "string"},
          "size": {"type": "integer", "minimum": 0},
          "md5": {"type": "string"},
          "sha256": {"type": "string"},
          "storage_ref": {"type": "string", "minLength": 1}
        }
      }
    },
    "relations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to", "rel_type"],
        "properties": {
          "from": {"type": "string"},
          "to": {"type": "string"},
          "rel_type": {"type": "string"}
        }
      }
    }
  }
}`
