package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extensionSchemas holds one compiled schema per decision type.
type extensionSchemas map[string]*jsonschema.Schema

func compileExtensionSchemas(src map[string]string) (extensionSchemas, error) {
	out := make(extensionSchemas, len(src))
	for typ, schema := range src {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020

		url := "warden://extensions/" + typ + ".json"
		if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
			return nil, fmt.Errorf("classifier: extension schema for %q: %w", typ, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("classifier: compile extension schema for %q: %w", typ, err)
		}
		out[typ] = compiled
	}
	return out, nil
}

// check validates ext against the schema registered for decisionType. Types
// without a schema accept any extensions. A nil map is checked as {}.
func (s extensionSchemas) check(decisionType string, ext map[string]any) error {
	schema, ok := s[decisionType]
	if !ok {
		return nil
	}
	if ext == nil {
		ext = map[string]any{}
	}
	// Normalize Go values (ints, typed slices) to their JSON form.
	data, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("classifier: %w: extensions: %v", ErrInvalidProposal, err)
	}
	var doc any
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return fmt.Errorf("classifier: %w: extensions: %v", ErrInvalidProposal, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("classifier: %w: extensions do not match schema for %s: %v", ErrInvalidProposal, decisionType, err)
	}
	return nil
}
