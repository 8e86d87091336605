package mcpbridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/riskposture/internal/history"
	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/internal/model"
	"github.com/jmerrifield20/riskposture/internal/report"
	"github.com/jmerrifield20/riskposture/internal/usecase"
	"github.com/jmerrifield20/riskposture/pkg/client"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubSource struct{}

func (stubSource) Incidents(context.Context, client.IncidentQuery) ([]model.Incident, error) {
	return []model.Incident{
		{Key: "T-1", Type: "phishing", Assets: []string{"Acme"}, OpenedAt: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)},
		{Key: "T-2", Type: "malware", Assets: []string{"Acme"}, OpenedAt: time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func (stubSource) MarketSegmentMedian(context.Context, string, time.Time) (model.MarketMedian, error) {
	return model.MarketMedian{Segment: "RETAIL", Median: 100}, nil
}

func (stubSource) TakedownUptime(context.Context, client.StatsQuery) (model.UptimeHistogram, error) {
	return model.UptimeHistogram{LessThan1Day: 4}, nil
}

func (stubSource) WebComplaints(context.Context, time.Time, time.Time) (int, error) { return 0, nil }

func (stubSource) Credentials(context.Context, client.CredentialQuery) ([]client.Credential, error) {
	return nil, nil
}

func (stubSource) CustomerAssets(context.Context, string) ([]model.Asset, error) {
	return []model.Asset{{Key: "B1", Name: "Acme", Category: model.AssetBrand}}, nil
}

func (stubSource) TicketTypeCounts(context.Context, client.StatsQuery, ...string) ([]model.TypeCount, error) {
	return nil, nil
}

func newTools(t *testing.T) *ToolRegistry {
	t.Helper()
	runner, err := report.NewRunner(stubSource{}, report.Options{
		CustomerID: "ACME",
		Engine:     kri.DefaultConfig(),
		History:    history.NewMemory(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewToolRegistry(runner)
}

// serve feeds lines to a server and returns its responses keyed by id.
func serve(t *testing.T, lines ...string) map[string]rpcResponse {
	t.Helper()
	var out bytes.Buffer
	s := NewServer(&out, newTools(t), "test", zap.NewNop())
	if err := s.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n"))); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	got := map[string]rpcResponse{}
	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var resp rpcResponse
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", sc.Text(), err)
		}
		got[string(resp.ID)] = resp
	}
	return got
}

func toolText(t *testing.T, resp rpcResponse) (string, bool) {
	t.Helper()
	res, _ := resp.Result.(map[string]any)
	content, _ := res["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("unexpected result: %+v", resp.Result)
	}
	text, _ := content[0].(map[string]any)["text"].(string)
	isErr, _ := res["isError"].(bool)
	return text, isErr
}

// ── Protocol ─────────────────────────────────────────────────────────────

func TestServe_protocolMethods(t *testing.T) {
	got := serve(t,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":4,"method":"resources/list"}`,
		`not json`,
	)

	if len(got) != 5 {
		t.Fatalf("expected 5 responses (notification ignored), got %d", len(got))
	}
	if got["1"].Error != nil {
		t.Errorf("initialize error: %+v", got["1"].Error)
	}
	tools, _ := got["3"].Result.(map[string]any)["tools"].([]any)
	if len(tools) != len(usecase.All())+1 {
		t.Errorf("tools/list returned %d tools", len(tools))
	}
	if e := got["4"].Error; e == nil || e.Code != codeMethodNotFound {
		t.Errorf("expected method not found, got %+v", got["4"])
	}
	if e := got["null"].Error; e == nil || e.Code != codeParseError {
		t.Errorf("expected parse error, got %+v", got["null"])
	}
}

func TestServe_rejectsWrongVersion(t *testing.T) {
	got := serve(t,
		`{"jsonrpc":"1.0","id":1,"method":"ping"}`,
		`{"id":2,"method":"tools/list"}`,
	)
	for _, id := range []string{"1", "2"} {
		if e := got[id].Error; e == nil || e.Code != codeInvalidRequest {
			t.Errorf("id %s: expected invalid request, got %+v", id, got[id])
		}
	}
}

// ── Tools ────────────────────────────────────────────────────────────────

func TestToolsCall_score(t *testing.T) {
	got := serve(t,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"score","arguments":{"from":"2024-06-01","to":"2024-06-30"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"score","arguments":{"from":"2024-06-01","to":"2024-06-30","format":"json"}}}`,
	)

	text, isErr := toolText(t, got["1"])
	if isErr || !strings.Contains(text, "800 / 1000") {
		t.Errorf("text result (isError=%v):\n%s", isErr, text)
	}
	text, isErr = toolText(t, got["2"])
	if isErr || !json.Valid([]byte(text)) {
		t.Errorf("json result (isError=%v):\n%s", isErr, text)
	}
}

func TestToolsCall_errors(t *testing.T) {
	tests := []struct {
		name string
		args string
		want string
	}{
		{"unknown tool", `{"name":"nope"}`, "unknown tool"},
		{"bad period", `{"name":"score","arguments":{"from":"2024-06-01"}}`, "from and to"},
		{"origin missing", `{"name":"origin","arguments":{"days":7}}`, "origin"},
		{"brand history without scope", `{"name":"score_history","arguments":{"kind":"brand"}}`, "scope is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serve(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":`+tt.args+`}`)
			text, isErr := toolText(t, got["1"])
			if !isErr || !strings.Contains(text, tt.want) {
				t.Errorf("isError=%v text=%q, want error mentioning %q", isErr, text, tt.want)
			}
		})
	}
}

func TestToolsCall_invalidParams(t *testing.T) {
	got := serve(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`)
	if e := got["1"].Error; e == nil || e.Code != codeInvalidParams {
		t.Errorf("expected invalid params, got %+v", got["1"])
	}
}

func TestScoreHistory_afterScore(t *testing.T) {
	tools := newTools(t)
	ctx := context.Background()

	if text, isErr := tools.Call(ctx, historyTool, nil); isErr || !strings.Contains(text, "No scores") {
		t.Errorf("empty history: isError=%v %q", isErr, text)
	}
	if _, isErr := tools.Call(ctx, "score", json.RawMessage(`{"days":30}`)); isErr {
		t.Fatal("score failed")
	}
	text, isErr := tools.Call(ctx, historyTool, json.RawMessage(`{}`))
	if isErr {
		t.Fatalf("history failed: %s", text)
	}
	var entries []history.Entry
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Scope != "ACME" {
		t.Errorf("entries = %+v", entries)
	}
}
