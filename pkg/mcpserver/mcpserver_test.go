package mcpserver_test

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/loomdb/loomdb/pkg/engine"
	"github.com/loomdb/loomdb/pkg/mcpserver"
)

func newTestDeps(t *testing.T, tenantID string) (*mcpserver.Deps, *engine.Engine) {
	t.Helper()
	e := engine.New(engine.Config{})
	t.Cleanup(func() { e.Close() })

	if _, err := e.CreateCollection(context.Background(), "kb", engine.CollectionOptions{Dimension: 3}); err != nil {
		t.Fatal(err)
	}
	return &mcpserver.Deps{Engine: e, TenantID: tenantID}, e
}

func callTool(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("expected tool result content")
	}
	tc, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatal("expected text content")
	}
	return tc.Text
}

func TestVectorInsertAndQueryRoundTrip(t *testing.T) {
	deps, _ := newTestDeps(t, "")
	srv := mcpserver.NewServer(deps)
	_ = srv

	insertReq := callTool(map[string]any{
		"collection": "kb",
		"documents": []any{
			map[string]any{"vector": []any{1.0, 0.0, 0.0}},
		},
	})
	insertRes, err := deps.HandleInsert(context.Background(), insertReq)
	if err != nil {
		t.Fatal(err)
	}
	if insertRes.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, insertRes))
	}

	queryReq := callTool(map[string]any{
		"collection": "kb",
		"vector":     []any{1.0, 0.0, 0.0},
		"topK":       5.0,
	})
	queryRes, err := deps.HandleQuery(context.Background(), queryReq)
	if err != nil {
		t.Fatal(err)
	}
	if queryRes.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, queryRes))
	}
	if !strings.Contains(resultText(t, queryRes), "1 result") {
		t.Fatalf("expected one query hit, got: %s", resultText(t, queryRes))
	}
}

func TestVectorDeleteRemovesDocument(t *testing.T) {
	deps, e := newTestDeps(t, "")

	insertReq := callTool(map[string]any{
		"collection": "kb",
		"documents": []any{
			map[string]any{"id": "doc-1", "vector": []any{0.0, 1.0, 0.0}},
		},
	})
	if _, err := deps.HandleInsert(context.Background(), insertReq); err != nil {
		t.Fatal(err)
	}

	deleteReq := callTool(map[string]any{
		"collection": "kb",
		"ids":        []any{"doc-1"},
	})
	deleteRes, err := deps.HandleDelete(context.Background(), deleteReq)
	if err != nil {
		t.Fatal(err)
	}
	if deleteRes.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, deleteRes))
	}
	if !strings.Contains(resultText(t, deleteRes), "deleted 1") {
		t.Fatalf("expected deletion count of 1, got: %s", resultText(t, deleteRes))
	}

	if _, ok := e.DocumentMetadata("kb", "doc-1"); ok {
		t.Fatal("expected document to be gone after delete")
	}
}

func TestVectorQueryIsTenantScoped(t *testing.T) {
	depsA, e := newTestDeps(t, "tenant-a")
	depsB := &mcpserver.Deps{Engine: e, TenantID: "tenant-b"}

	insertReq := callTool(map[string]any{
		"collection": "kb",
		"documents": []any{
			map[string]any{"vector": []any{1.0, 0.0, 0.0}},
		},
	})
	if _, err := depsA.HandleInsert(context.Background(), insertReq); err != nil {
		t.Fatal(err)
	}

	queryReq := callTool(map[string]any{
		"collection": "kb",
		"vector":     []any{1.0, 0.0, 0.0},
		"topK":       5.0,
	})
	res, err := depsB.HandleQuery(context.Background(), queryReq)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(t, res), "0 result") {
		t.Fatalf("expected tenant-b to see no results, got: %s", resultText(t, res))
	}
}

func TestVectorInsertRejectsMissingCollection(t *testing.T) {
	deps, _ := newTestDeps(t, "")
	req := callTool(map[string]any{
		"documents": []any{map[string]any{"vector": []any{1.0, 0.0, 0.0}}},
	})
	res, err := deps.HandleInsert(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected an error result for missing collection")
	}
}
