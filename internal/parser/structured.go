package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/util"
	"gopkg.in/yaml.v3"
)

// Validator is implemented by records that check their own invariants after
// decoding (required fields, enumerations).
type Validator interface {
	Validate() error
}

// DecodeRecord extracts a JSON object from text and decodes it into out,
// which must be a pointer to a struct tagged with `json` names. Fenced
// ```json blocks, bare ``` blocks and the outermost {...} span are tried in
// that order; YAML is accepted as a fallback for models that ignore the JSON
// instruction. If out implements Validator its Validate method runs last.
// Every failure is a *errs.ParsingError.
func DecodeRecord(text string, out any) error {
	body := ExtractObject(text)
	if body == "" {
		return errs.NewParsing("no structured object in output", map[string]any{"text": util.Detail(text)}, nil)
	}

	raw := map[string]any{}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		if yerr := yaml.Unmarshal([]byte(body), &raw); yerr != nil || len(raw) == 0 {
			return errs.NewParsing("structured output is not valid JSON", map[string]any{"text": util.Detail(text)}, err)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return errs.NewParsing("structured output does not match schema", map[string]any{"text": util.Detail(text)}, err)
	}

	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return errs.NewParsing("structured output failed validation", map[string]any{"text": util.Detail(text)}, err)
		}
	}
	return nil
}

// ExtractObject returns the most likely structured payload inside content.
func ExtractObject(content string) string {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		rest := content[idx+7:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if idx := strings.Index(content, "```"); idx >= 0 {
		rest := content[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			block := rest[:end]
			// drop a language tag such as ```yaml
			if nl := strings.Index(block, "\n"); nl >= 0 && !strings.ContainsAny(block[:nl], ":{") {
				block = block[nl+1:]
			}
			return strings.TrimSpace(block)
		}
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return strings.TrimSpace(content)
}
