package generate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/rules"
)

//go:embed rules_schema.json
var rulesSchema []byte

const schemaURL = "prosepolisher://rules_schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error

	fenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(rulesSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// ExtractJSON pulls the JSON array out of a model reply, tolerating
// markdown fences and surrounding prose.
func ExtractJSON(raw string) (string, bool) {
	if m := fenceRegex.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return strings.TrimSpace(raw[start : end+1]), true
}

// ParseRules turns a model reply into rule drafts. The whole reply is
// rejected with ErrGenerationFailed if it is not a schema-valid array or if
// any rule fails validation.
func ParseRules(raw string) ([]model.Rule, error) {
	body, ok := ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array in response", ErrGenerationFailed)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGenerationFailed, err)
	}
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: schema: %v", ErrGenerationFailed, err)
	}

	var drafts []model.Rule
	if err := json.Unmarshal([]byte(body), &drafts); err != nil {
		return nil, fmt.Errorf("%w: decode rules: %v", ErrGenerationFailed, err)
	}
	out := make([]model.Rule, 0, len(drafts))
	for i, d := range drafts {
		d.ID = ""
		if err := rules.Validate(d); err != nil {
			return nil, fmt.Errorf("%w: rule %d (%q): %v", ErrGenerationFailed, i, d.ScriptName, err)
		}
		out = append(out, model.NormalizeRule(d, false, nil))
	}
	return out, nil
}
