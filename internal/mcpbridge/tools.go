package mcpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/internal/metrics"
	"github.com/jmerrifield20/riskposture/internal/report"
	"github.com/jmerrifield20/riskposture/internal/usecase"
)

// historyTool lists recorded scores. Every other tool is an analysis.
const historyTool = "score_history"

// ToolDefinition is the MCP tool descriptor sent in tools/list responses.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func ok(text string) (string, bool)   { return text, false }
func fail(text string) (string, bool) { return text, true }
func failf(format string, a ...any) (string, bool) {
	return fmt.Sprintf(format, a...), true
}

// ToolRegistry maps MCP tools onto the analysis registry.
type ToolRegistry struct {
	runner *report.Runner
	defs   []ToolDefinition
	now    func() time.Time
}

// periodProperties are the inputs every analysis tool accepts.
func periodProperties() map[string]any {
	return map[string]any{
		"from": map[string]any{
			"type":        "string",
			"description": "Start date, YYYY-MM-DD. Must be given with to.",
		},
		"to": map[string]any{
			"type":        "string",
			"description": "End date, YYYY-MM-DD. Must be given with from.",
		},
		"days": map[string]any{
			"type":        "integer",
			"description": "Look back this many days when from/to are not given. Defaults to 30.",
		},
		"limit": map[string]any{
			"type":        "integer",
			"description": "Cap list output. 0 means no cap.",
		},
		"origin": map[string]any{
			"type":        "string",
			"description": "Ticket originator for the origin analysis.",
			"enum":        []string{"onepixel", "platform", "api", "collector"},
		},
		"status": map[string]any{
			"type":        "string",
			"description": "Credential detection status filter, e.g. NEW,IN_TREATMENT.",
		},
		"format": map[string]any{
			"type":        "string",
			"description": "Output format. Defaults to text.",
			"enum":        []string{usecase.FormatText, usecase.FormatJSON},
		},
	}
}

// NewToolRegistry creates a ToolRegistry with one tool per registered
// analysis plus score_history.
func NewToolRegistry(runner *report.Runner) *ToolRegistry {
	r := &ToolRegistry{runner: runner, now: time.Now}
	for _, a := range usecase.All() {
		def := ToolDefinition{
			Name:        a.Name,
			Description: a.Description + " for customer " + runner.CustomerID() + ".",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": periodProperties(),
			},
		}
		if a.Name == "origin" {
			def.InputSchema["required"] = []string{"origin"}
		}
		r.defs = append(r.defs, def)
	}
	r.defs = append(r.defs, ToolDefinition{
		Name:        historyTool,
		Description: "Recorded scores of the tenant or one brand, newest first, with grades and periods.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"kind": map[string]any{
					"type":        "string",
					"description": "Scope kind. Defaults to tenant.",
					"enum":        []string{kri.ScopeTenant, kri.ScopeBrand},
				},
				"scope": map[string]any{
					"type":        "string",
					"description": "Brand name. Required for kind=brand.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of entries. Defaults to 10.",
				},
			},
		},
	})
	return r
}

// Definitions returns the list of tool definitions for tools/list responses.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	return r.defs
}

// Call dispatches a tool call by name and returns (output text, isError).
func (r *ToolRegistry) Call(ctx context.Context, name string, args json.RawMessage) (string, bool) {
	if name == historyTool {
		return r.scoreHistory(ctx, args)
	}
	a, err := usecase.Lookup(name)
	if err != nil {
		return failf("unknown tool: %q", name)
	}
	return r.runAnalysis(ctx, a, args)
}

// ── tool handlers ────────────────────────────────────────────────────────────

type analysisArgs struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Days   int    `json:"days"`
	Limit  int    `json:"limit"`
	Origin string `json:"origin"`
	Status string `json:"status"`
	Format string `json:"format"`
}

func (r *ToolRegistry) runAnalysis(ctx context.Context, a usecase.Analysis, args json.RawMessage) (string, bool) {
	var in analysisArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return failf("invalid arguments: %v", err)
		}
	}
	if in.Limit < 0 {
		return fail("limit must not be negative")
	}
	period, err := usecase.ResolvePeriod(in.From, in.To, in.Days, r.now())
	if err != nil {
		return fail(err.Error())
	}

	out, err := a.Run(ctx, r.runner, usecase.Params{
		Period: period,
		Limit:  in.Limit,
		Origin: in.Origin,
		Status: in.Status,
	})
	metrics.RecordRun(a.Name, err)
	if err != nil {
		return failf("%s failed: %v", a.Name, err)
	}

	var buf bytes.Buffer
	if err := usecase.Render(&buf, in.Format, out); err != nil {
		return fail(err.Error())
	}
	return ok(buf.String())
}

func (r *ToolRegistry) scoreHistory(ctx context.Context, args json.RawMessage) (string, bool) {
	in := struct {
		Kind  string `json:"kind"`
		Scope string `json:"scope"`
		Limit int    `json:"limit"`
	}{Kind: kri.ScopeTenant, Limit: 10}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return failf("invalid arguments: %v", err)
		}
	}
	if in.Kind == kri.ScopeBrand && in.Scope == "" {
		return fail("scope is required for brand history")
	}

	entries, err := r.runner.History(ctx, in.Kind, in.Scope, in.Limit)
	if err != nil {
		return failf("score history failed: %v", err)
	}
	if len(entries) == 0 {
		return ok("No scores recorded for this scope yet.")
	}

	out, _ := json.MarshalIndent(entries, "", "  ")
	return ok(string(out))
}
