// Package env reads the robot's environment from the catalog collaborator
// and renders it, together with the static skill catalog, into the text
// blocks injected into prompts.
package env

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pocketomega/pocket-planner/internal/config"
	"github.com/pocketomega/pocket-planner/internal/errs"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// maxBodyBytes caps the collaborator response size.
const maxBodyBytes = 4 << 20

// Snapshot is the decoded /env_entire document. Group order follows the
// document.
type Snapshot struct {
	ObjectsByGroup   *orderedmap.OrderedMap[string, []string] `json:"objects_by_group"`
	UngroupedObjects []string                                 `json:"ungrouped_objects"`
}

// Catalog holds the three prompt text blocks.
type Catalog struct {
	Objects string `json:"objects"`
	Groups  string `json:"groups"`
	Skills  string `json:"skills"`
}

// Client talks to the environment collaborator. Requests are not retried.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the collaborator at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Snapshot fetches GET {baseURL}/env_entire. A non-empty ungrouped_objects
// list is a *errs.ConfigError.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	endpoint := c.baseURL + "/env_entire"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build environment request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch environment %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch environment %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	snap := &Snapshot{ObjectsByGroup: orderedmap.New[string, []string]()}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(snap); err != nil {
		return nil, fmt.Errorf("decode environment document: %w", err)
	}
	if len(snap.UngroupedObjects) > 0 {
		return nil, errs.NewConfig("environment has ungrouped objects", map[string]any{
			"ungrouped_objects": snap.UngroupedObjects,
		}, nil)
	}
	if snap.ObjectsByGroup == nil || snap.ObjectsByGroup.Len() == 0 {
		return nil, errs.NewConfig("environment has no object groups", map[string]any{"url": endpoint}, nil)
	}
	log.Printf("[Env] %d group(s) loaded from %s", snap.ObjectsByGroup.Len(), c.baseURL)
	return snap, nil
}

// Catalog fetches a snapshot and renders all three text blocks.
func (c *Client) Catalog(ctx context.Context, skills []config.SkillModule) (Catalog, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return Catalog{}, err
	}
	return Catalog{
		Objects: snap.ObjectText(""),
		Groups:  snap.GroupText(),
		Skills:  SkillText(skills),
	}, nil
}

// ObjectText renders one line per object:
//
//	{
//	"object_name": "apple", "object_in_group": "fridge"
//	}
//
// A non-empty only restricts the listing to objects with that name.
func (s *Snapshot) ObjectText(only string) string {
	var sb strings.Builder
	sb.WriteString("{\n")
	for pair := s.ObjectsByGroup.Oldest(); pair != nil; pair = pair.Next() {
		for _, obj := range pair.Value {
			if only != "" && obj != only {
				continue
			}
			fmt.Fprintf(&sb, "\"object_name\": %q, \"object_in_group\": %q\n", obj, pair.Key)
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// GroupText renders the group names as a bracketed list in document order.
func (s *Snapshot) GroupText() string {
	var sb strings.Builder
	sb.WriteString("[\n")
	for pair := s.ObjectsByGroup.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(&sb, "    %q,\n", pair.Key)
	}
	sb.WriteString("]")
	return sb.String()
}

// Groups returns the group names in document order.
func (s *Snapshot) Groups() []string {
	names := make([]string, 0, s.ObjectsByGroup.Len())
	for pair := s.ObjectsByGroup.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// SkillText renders the skill catalog as import lines, one per module:
//
//	from robot.skills import GoToObject, PickObject
func SkillText(modules []config.SkillModule) string {
	lines := make([]string, 0, len(modules))
	for _, m := range modules {
		lines = append(lines, fmt.Sprintf("from %s.skills import %s", m.Name, strings.Join(m.Skills, ", ")))
	}
	return strings.Join(lines, "\n")
}
