package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loomdb/loomdb/pkg/engine"
	"github.com/loomdb/loomdb/pkg/server"
)

var testSecret = []byte("test-secret-at-least-32-bytes-long")

func newTestServer(t *testing.T, allowAnonymous bool) (*server.Server, *engine.Engine) {
	t.Helper()
	e := engine.New(engine.Config{})
	t.Cleanup(func() { e.Close() })

	cfg := server.DefaultConfig()
	cfg.JWTSecret = testSecret
	cfg.AllowAnonymous = allowAnonymous
	return server.New(e, cfg), e
}

func signToken(t *testing.T, tenantID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant": tenantID,
		"iat":    time.Now().Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRequiresNoAuth(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := doJSON(t, s.Router(), http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateAndListCollections(t *testing.T) {
	s, _ := newTestServer(t, true)
	router := s.Router()

	rec := doJSON(t, router, http.MethodPost, "/collections/", map[string]any{
		"name": "docs", "dimension": 3,
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/collections/", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(list))
	}
}

func TestAnonymousRejectedWithoutAllowAnonymous(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := doJSON(t, s.Router(), http.MethodGet, "/collections/", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTenantScopedInsertAndQuery(t *testing.T) {
	s, _ := newTestServer(t, false)
	router := s.Router()
	token := signToken(t, "tenant-a")

	rec := doJSON(t, router, http.MethodPost, "/collections/", map[string]any{
		"name": "kb", "dimension": 3,
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create collection: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/collections/kb/documents", map[string]any{
		"documents": []map[string]any{{"vector": []float64{1, 0, 0}}},
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("insert: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/collections/kb/query", map[string]any{
		"vector": []float64{1, 0, 0}, "topK": 5,
	}, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("query: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	otherToken := signToken(t, "tenant-b")
	rec = doJSON(t, router, http.MethodPost, "/collections/kb/query", map[string]any{
		"vector": []float64{1, 0, 0}, "topK": 5,
	}, otherToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("cross-tenant query: expected 200, got %d", rec.Code)
	}
	var result struct {
		Results []map[string]any `json:"Results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 0 {
		t.Fatalf("expected tenant-b to see no results, got %d", len(result.Results))
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := doJSON(t, s.Router(), http.MethodGet, "/collections/", nil, "garbage")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSnapshotExportAndImportRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, true)
	router := s.Router()

	rec := doJSON(t, router, http.MethodPost, "/collections/", map[string]any{
		"name": "kb", "dimension": 3,
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create collection: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/collections/kb/documents", map[string]any{
		"documents": []map[string]any{{"vector": []float64{1, 0, 0}}},
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("insert: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/collections/kb/snapshot", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var snap map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, router, http.MethodPost, "/collections/kb-restored/snapshot", snap, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("import: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/collections/kb-restored/query", map[string]any{
		"vector": []float64{1, 0, 0}, "topK": 1,
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("query restored: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSnapshotExportUnknownCollection(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := doJSON(t, s.Router(), http.MethodGet, "/collections/missing/snapshot", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDropCollectionNotFound(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := doJSON(t, s.Router(), http.MethodDelete, "/collections/missing", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
