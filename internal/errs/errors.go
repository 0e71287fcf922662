// Package errs defines the planner's error taxonomy.
//
// Every kind carries a stable code, an HTTP-style status, a details map for
// diagnostics, and an optional wrapped cause, so callers can use errors.As to
// recover the kind and errors.Is/Unwrap to reach the root cause.
package errs

import (
	"errors"
	"fmt"
)

// Error codes, one per kind.
const (
	CodeConfig         = "CONFIG_ERROR"
	CodePromptLoad     = "PROMPT_LOAD_ERROR"
	CodeParsing        = "PARSING_ERROR"
	CodeLLM            = "LLM_ERROR"
	CodeGraphExecution = "GRAPH_EXECUTION_ERROR"
)

// Base holds the fields shared by every planner error.
type Base struct {
	Code    string
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

func (b *Base) Error() string {
	if b.Cause != nil {
		return fmt.Sprintf("%s: %v", b.Message, b.Cause)
	}
	return b.Message
}

func (b *Base) Unwrap() error { return b.Cause }

// ToMap renders the error as a JSON-friendly payload for HTTP and MCP responses.
func (b *Base) ToMap() map[string]any {
	payload := map[string]any{
		"error_code":    b.Code,
		"error_message": b.Error(),
		"status":        b.Status,
	}
	if len(b.Details) > 0 {
		payload["details"] = b.Details
	}
	return payload
}

// ConfigError reports missing or invalid configuration. Fatal at startup.
type ConfigError struct{ Base }

// PromptLoadError reports a missing or unreadable prompt template. Fatal at startup.
type PromptLoadError struct{ Base }

// ParsingError reports generation output that could not be reduced to the
// expected structure. Retried within a node's budget.
type ParsingError struct{ Base }

// LLMError reports a generation call that failed or returned nothing usable.
// Retried within a node's budget.
type LLMError struct{ Base }

// GraphExecutionError reports a node that could not complete. Fatal for the run.
type GraphExecutionError struct {
	Base
	Node     string
	Attempts int
}

// NewConfig creates a ConfigError.
func NewConfig(msg string, details map[string]any, cause error) *ConfigError {
	return &ConfigError{Base{Code: CodeConfig, Status: 500, Message: msg, Details: details, Cause: cause}}
}

// NewPromptLoad creates a PromptLoadError.
func NewPromptLoad(msg string, details map[string]any, cause error) *PromptLoadError {
	return &PromptLoadError{Base{Code: CodePromptLoad, Status: 500, Message: msg, Details: details, Cause: cause}}
}

// NewParsing creates a ParsingError.
func NewParsing(msg string, details map[string]any, cause error) *ParsingError {
	return &ParsingError{Base{Code: CodeParsing, Status: 422, Message: msg, Details: details, Cause: cause}}
}

// NewLLM creates an LLMError.
func NewLLM(msg string, details map[string]any, cause error) *LLMError {
	return &LLMError{Base{Code: CodeLLM, Status: 502, Message: msg, Details: details, Cause: cause}}
}

// NewGraphExecution creates a GraphExecutionError naming the node and the last
// underlying error.
func NewGraphExecution(node string, attempts int, cause error) *GraphExecutionError {
	msg := fmt.Sprintf("%s failed after %d attempt(s)", node, attempts)
	details := map[string]any{"node": node, "attempts": attempts}
	if cause != nil {
		details["error"] = cause.Error()
	}
	return &GraphExecutionError{
		Base:     Base{Code: CodeGraphExecution, Status: 500, Message: msg, Details: details, Cause: cause},
		Node:     node,
		Attempts: attempts,
	}
}

// Retryable reports whether err is a parsing or generation failure that a node
// may retry.
func Retryable(err error) bool {
	var pe *ParsingError
	var le *LLMError
	return errors.As(err, &pe) || errors.As(err, &le)
}

// Payload extracts the structured payload of any planner error, falling back
// to a generic shape for foreign errors.
func Payload(err error) map[string]any {
	var (
		ce *ConfigError
		pl *PromptLoadError
		pe *ParsingError
		le *LLMError
		ge *GraphExecutionError
	)
	switch {
	case errors.As(err, &ge):
		return ge.ToMap()
	case errors.As(err, &ce):
		return ce.ToMap()
	case errors.As(err, &pl):
		return pl.ToMap()
	case errors.As(err, &pe):
		return pe.ToMap()
	case errors.As(err, &le):
		return le.ToMap()
	}
	return map[string]any{"error_code": "UNKNOWN", "error_message": err.Error(), "status": 500}
}
