// Package parser turns free-form generation output into structured values:
// ordered numbered lists (goal/task/action levels) and JSON records
// (intent, feasibility, feedback verdicts).
package parser

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/util"
)

// Debug enables per-line diagnostics (PLANNER_DEBUG=1).
var Debug = os.Getenv("PLANNER_DEBUG") != ""

// DefaultPattern matches "1. content" style lines.
const DefaultPattern = `^(\d+)\.\s*(.+)$`

var numberPrefix = regexp.MustCompile(`^\d+\.\s*`)

// ListParser extracts an ordered list of items using a compiled pattern whose
// first capture group is the item index and second is the item content.
type ListParser struct {
	pattern string
	re      *regexp.Regexp
}

// NewListParser compiles pattern. The pattern must declare exactly two
// capture groups.
func NewListParser(pattern string) (*ListParser, error) {
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() != 2 {
		return nil, fmt.Errorf("pattern %q must have 2 capture groups (index, content), has %d", pattern, re.NumSubexp())
	}
	return &ListParser{pattern: pattern, re: re}, nil
}

// MustListParser is like NewListParser but panics on an invalid pattern.
func MustListParser(pattern string) *ListParser {
	p, err := NewListParser(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Pattern returns the source pattern.
func (p *ListParser) Pattern() string { return p.pattern }

// Parse extracts items ordered by their numeric index. When no line matches,
// the text is coerced into a numbered list and matched again; if that also
// yields nothing a *errs.ParsingError is returned.
func (p *ListParser) Parse(text string) ([]string, error) {
	items := p.extract(text)

	if len(items) == 0 {
		coerced := Coerce(text)
		if coerced != "" && coerced != text {
			if Debug {
				log.Printf("[Parser] initial parse failed; retrying on coerced text")
			}
			items = p.extract(coerced)
		}
	}

	if len(items) == 0 {
		return nil, errs.NewParsing("failed to parse numbered list",
			map[string]any{"pattern": p.pattern, "text": util.Detail(text)}, nil)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].index < items[j].index })
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.content
	}
	return out, nil
}

type indexedItem struct {
	index   int
	content string
}

// extract matches each trimmed line against the pattern anchored at the line
// start. Lines whose index token is not an integer are skipped.
func (p *ListParser) extract(text string) []indexedItem {
	var items []indexedItem
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		m := p.re.FindStringSubmatchIndex(line)
		if m == nil || m[0] != 0 {
			continue
		}
		idxTok := submatch(line, m, 1)
		idx, err := strconv.Atoi(strings.TrimSpace(idxTok))
		if err != nil {
			if Debug {
				log.Printf("[Parser] skipping non-numeric index %q for line: %s", idxTok, line)
			}
			continue
		}
		items = append(items, indexedItem{index: idx, content: strings.TrimSpace(submatch(line, m, 2))})
	}
	return items
}

func submatch(s string, loc []int, group int) string {
	start, end := loc[2*group], loc[2*group+1]
	if start < 0 {
		return ""
	}
	return s[start:end]
}

// Coerce rewrites bullet-like text into a "1. item" numbered list: blank
// lines are dropped, bullet markers stripped, and any existing numeric prefix
// replaced by the line's position.
func Coerce(text string) string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines = append(lines, strings.Trim(raw, " -*\t\r"))
	}
	if len(lines) == 0 {
		return ""
	}
	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, numberPrefix.ReplaceAllString(line, ""))
	}
	return strings.Join(numbered, "\n")
}

// ParseNumberedList is a convenience wrapper compiling pattern on each call.
func ParseNumberedList(text, pattern string) ([]string, error) {
	p, err := NewListParser(pattern)
	if err != nil {
		return nil, errs.NewParsing("invalid list pattern", map[string]any{"pattern": pattern}, err)
	}
	return p.Parse(text)
}
