// Package mcpserver exposes an Engine as a set of MCP tools: vector_insert,
// vector_query, and vector_delete. Each tool operates against a single
// collection and, when constructed with a tenant id, against a tenant.Wrapper
// so that the documents an MCP client can see and mutate are scoped the same
// way the HTTP API scopes them.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/loomdb/loomdb/pkg/engine"
	"github.com/loomdb/loomdb/pkg/filter"
	"github.com/loomdb/loomdb/pkg/tenant"
)

// target is the insert/delete/query surface a tool call is routed through.
type target interface {
	Insert(ctx context.Context, docs []tenant.InsertDoc) ([]string, error)
	Delete(ctx context.Context, ids []string) (int, error)
	Query(ctx context.Context, vec []float64, opts tenant.QueryOptions) (tenant.QueryResult, error)
}

// rawTarget adapts a collection on the unscoped engine to target.
type rawTarget struct {
	engine     *engine.Engine
	collection string
}

func (t rawTarget) Insert(ctx context.Context, docs []tenant.InsertDoc) ([]string, error) {
	return t.engine.Insert(ctx, t.collection, docs)
}

func (t rawTarget) Delete(ctx context.Context, ids []string) (int, error) {
	return t.engine.Delete(ctx, t.collection, ids)
}

func (t rawTarget) Query(ctx context.Context, vec []float64, opts tenant.QueryOptions) (tenant.QueryResult, error) {
	return t.engine.Query(ctx, t.collection, vec, opts)
}

// Deps holds the shared dependencies MCP tool handlers need.
type Deps struct {
	Engine   *engine.Engine
	TenantID string // empty means unscoped, raw engine access
}

func (d *Deps) targetFor(collection string) target {
	if d.TenantID != "" {
		return d.Engine.Tenant(collection, d.TenantID)
	}
	return rawTarget{engine: d.Engine, collection: collection}
}

// NewServer builds an mcp-go MCPServer with vector_insert, vector_query, and
// vector_delete registered against deps.
func NewServer(deps *Deps) *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer(
		"loomdb",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	insertTool := mcp.NewTool("vector_insert",
		mcp.WithDescription("Insert one or more vector documents into a collection"),
		mcp.WithString("collection", mcp.Description("Target collection name"), mcp.Required()),
		mcp.WithArray("documents",
			mcp.Description("Documents to insert, each with an optional id, a vector, and optional metadata"),
			mcp.Required(),
		),
	)

	queryTool := mcp.NewTool("vector_query",
		mcp.WithDescription("Run a nearest-neighbor vector query against a collection"),
		mcp.WithString("collection", mcp.Description("Target collection name"), mcp.Required()),
		mcp.WithArray("vector", mcp.Description("Query vector"), mcp.Required()),
		mcp.WithNumber("topK", mcp.Description("Number of nearest neighbors to return"), mcp.DefaultNumber(10)),
		mcp.WithObject("filter", mcp.Description("Optional metadata filter, e.g. {\"status\": {\"$eq\": \"active\"}}")),
		mcp.WithBoolean("includeVectors", mcp.Description("Include stored vectors in the response")),
	)

	deleteTool := mcp.NewTool("vector_delete",
		mcp.WithDescription("Delete documents from a collection by id"),
		mcp.WithString("collection", mcp.Description("Target collection name"), mcp.Required()),
		mcp.WithArray("ids", mcp.Description("Document ids to delete"), mcp.Required()),
	)

	srv.AddTool(insertTool, deps.HandleInsert)
	srv.AddTool(queryTool, deps.HandleQuery)
	srv.AddTool(deleteTool, deps.HandleDelete)

	return srv
}

func (d *Deps) HandleInsert(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	collectionName, _ := args["collection"].(string)
	if collectionName == "" {
		return mcp.NewToolResultError("collection parameter is required"), nil
	}

	rawDocs, ok := args["documents"].([]any)
	if !ok || len(rawDocs) == 0 {
		return mcp.NewToolResultError("documents parameter must be a non-empty array"), nil
	}

	docs := make([]tenant.InsertDoc, 0, len(rawDocs))
	for _, rd := range rawDocs {
		m, ok := rd.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("each document must be an object"), nil
		}

		vec, err := floatSlice(m["vector"])
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid vector: %v", err)), nil
		}

		id, _ := m["id"].(string)
		meta, _ := m["metadata"].(map[string]any)

		docs = append(docs, tenant.InsertDoc{
			ID:       id,
			Vector:   vec,
			Metadata: filter.MetadataFromAny(meta),
		})
	}

	ids, err := d.targetFor(collectionName).Insert(ctx, docs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("inserted %d document(s): %v", len(ids), ids)), nil
}

func (d *Deps) HandleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	collectionName, _ := args["collection"].(string)
	if collectionName == "" {
		return mcp.NewToolResultError("collection parameter is required"), nil
	}

	vec, err := floatSlice(args["vector"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid vector: %v", err)), nil
	}

	topK := 10
	if n, ok := args["topK"].(float64); ok && n > 0 {
		topK = int(n)
	}

	var f filter.Filter
	if rawFilter, ok := args["filter"].(map[string]any); ok && len(rawFilter) > 0 {
		f, err = filter.FromMap(rawFilter)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	includeVectors, _ := args["includeVectors"].(bool)

	result, err := d.targetFor(collectionName).Query(ctx, vec, tenant.QueryOptions{
		TopK:           topK,
		Filter:         f,
		IncludeVectors: includeVectors,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%d result(s) in %.2fms (%s, %d comparisons): %+v",
		len(result.Results), result.ElapsedMs, result.Method, result.Comparisons, result.Results)), nil
}

func (d *Deps) HandleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	collectionName, _ := args["collection"].(string)
	if collectionName == "" {
		return mcp.NewToolResultError("collection parameter is required"), nil
	}

	rawIDs, ok := args["ids"].([]any)
	if !ok || len(rawIDs) == 0 {
		return mcp.NewToolResultError("ids parameter must be a non-empty array"), nil
	}

	ids := make([]string, 0, len(rawIDs))
	for _, rid := range rawIDs {
		id, ok := rid.(string)
		if !ok || id == "" {
			return mcp.NewToolResultError("each id must be a non-empty string"), nil
		}
		ids = append(ids, id)
	}

	count, err := d.targetFor(collectionName).Delete(ctx, ids)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %d document(s)", count)), nil
}

// floatSlice converts a decoded JSON array (each element a float64) into
// []float64.
func floatSlice(v any) ([]float64, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of numbers")
	}
	out := make([]float64, len(raw))
	for i, e := range raw {
		n, ok := e.(float64)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = n
	}
	return out, nil
}
