package parser

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Feasible *bool    `json:"is_feasible"`
	Reasons  []string `json:"reasons"`
	Query    string   `json:"user_final_query"`
}

func (v *verdict) Validate() error {
	if v.Feasible == nil {
		return fmt.Errorf("is_feasible is required")
	}
	return nil
}

func TestDecodeRecord_FencedJSON(t *testing.T) {
	text := "Here you go:\n```json\n{\"is_feasible\": false, \"reasons\": [\"no lemon\"], \"user_final_query\": \"레몬을 가져와\"}\n```"
	var v verdict
	require.NoError(t, DecodeRecord(text, &v))
	assert.False(t, *v.Feasible)
	assert.Equal(t, []string{"no lemon"}, v.Reasons)
	assert.Equal(t, "레몬을 가져와", v.Query)
}

func TestDecodeRecord_BareObjectAndWeakTypes(t *testing.T) {
	var v verdict
	require.NoError(t, DecodeRecord(`result: {"is_feasible": "true", "user_final_query": "go"}`, &v))
	assert.True(t, *v.Feasible)
}

func TestDecodeRecord_YAMLFallback(t *testing.T) {
	var v verdict
	require.NoError(t, DecodeRecord("```yaml\nis_feasible: true\nuser_final_query: bring apple\n```", &v))
	assert.True(t, *v.Feasible)
	assert.Equal(t, "bring apple", v.Query)
}

func TestDecodeRecord_ValidationFailureIsParsingError(t *testing.T) {
	var v verdict
	err := DecodeRecord(`{"reasons": []}`, &v)
	var pe *errs.ParsingError
	require.True(t, errors.As(err, &pe))
}

func TestDecodeRecord_GarbageIsParsingError(t *testing.T) {
	var v verdict
	err := DecodeRecord("I cannot answer that.", &v)
	var pe *errs.ParsingError
	require.True(t, errors.As(err, &pe))
}
