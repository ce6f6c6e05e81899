package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalid = errors.New("record does not match schema")

// recordSchema describes one publication.Record as it appears in import
// files and POST bodies. Values are not range-checked: an empty title or a
// negative year is a valid record.
const recordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["kind", "title", "year"],
  "properties": {
    "id":         {"type": "string"},
    "kind":       {"type": "string", "enum": ["book", "article", "magazine"]},
    "title":      {"type": "string"},
    "year":       {"type": "integer"},
    "authors":    {"type": "array", "items": {"type": "string"}},
    "journal":    {"type": "string"},
    "number":     {"type": "integer"},
    "months":     {"type": "array", "items": {"type": "integer"}},
    "annotation": {"type": "string"},
    "fileInfo": {
      "type": "object",
      "properties": {
        "container": {"type": "string"},
        "filename":  {"type": "string"},
        "sha1":      {"type": "string"},
        "size":      {"type": "integer", "minimum": 0}
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false
}`

var compiled = mustCompile(recordSchema)

func mustCompile(s string) *gojsonschema.Schema {
	sc, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("schema: %v", err))
	}
	return sc
}

// ValidateRecord checks a raw JSON document. The returned error wraps
// ErrInvalid and lists every violation.
func ValidateRecord(doc []byte) error {
	res, err := compiled.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
