package config

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	// parse schema
	var schema jsonschema.Schema
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var configMap map[string]any
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	// check every top-level section declared by the schema is present
	root := schemaRoot(&schema)
	if root == nil || root.Properties == nil {
		return fmt.Errorf("embedded schema has no properties")
	}
	for pair := root.Properties.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := configMap[pair.Key]; !ok {
			return fmt.Errorf("missing section %q", pair.Key)
		}
	}

	// basic validation - check required fields match
	if err := validateRequiredFields(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// schemaRoot resolves the top-level $ref of a reflected schema
func schemaRoot(s *jsonschema.Schema) *jsonschema.Schema {
	if s.Properties != nil {
		return s
	}
	for name, def := range s.Definitions {
		if s.Ref == "#/$defs/"+name {
			return def
		}
	}
	return nil
}

// validateRequiredFields performs basic validation of required fields
func validateRequiredFields(cfg *Config) error {
	if cfg.Database.Driver == "" {
		return fmt.Errorf("database.driver is required")
	}
	if cfg.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if cfg.Feed.Timeout == 0 {
		return fmt.Errorf("feed.timeout is required")
	}
	if cfg.Log.File == "" {
		return fmt.Errorf("log.file is required")
	}
	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}
