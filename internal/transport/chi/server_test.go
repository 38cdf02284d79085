package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/structdex/internal/db/sqlite"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
	"github.com/kailas-cloud/structdex/internal/repository/identity"
	"github.com/kailas-cloud/structdex/internal/repository/schemasync"
	structrepo "github.com/kailas-cloud/structdex/internal/repository/structure"
	databaseuc "github.com/kailas-cloud/structdex/internal/usecase/database"
	documentuc "github.com/kailas-cloud/structdex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/structdex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/structdex/internal/usecase/query"
	"github.com/kailas-cloud/structdex/internal/version"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(st.Close)

	ids := identity.NewSQL(st)
	if err := ids.Init(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo := structrepo.New(st)
	sync := schemasync.New(st)
	sets := databaseuc.New(repo, sync, ids)
	queries := queryuc.New(sets, st, st.Dialect())
	documents := documentuc.New(repo, sets, ids, structure.NewIndexer(structure.JSONSerializer{})).
		WithReader(queries)

	srv := NewServer(sets, queries, documents, sync, healthuc.New(st, nil), zap.NewNop()).WithMaxBatchSize(3)
	r := chirouter.NewRouter()
	srv.Routes(r)
	return srv, r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	return resp
}

const personSet = `{
	"members": [
		{"path": "Name", "kind": "string", "unique": true},
		{"path": "Age", "kind": "integer"},
		{"path": "Tags", "kind": "string", "enumerable": true}
	],
	"json_schema": {"type": "object", "required": ["Name"]}
}`

func seeded(t *testing.T) http.Handler {
	t.Helper()
	_, h := newTestServer(t)
	if w := do(t, h, http.MethodPut, "/sets/Person", personSet); w.Code != http.StatusOK {
		t.Fatalf("put set: %d %s", w.Code, w.Body.String())
	}
	w := do(t, h, http.MethodPost, "/sets/Person/documents", `{"documents": [
		{"Name": "ann", "Age": 31, "Tags": ["a", "b"]},
		{"Name": "bob", "Age": 25, "Tags": ["b"]},
		{"Name": "cid", "Age": 40}
	]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("insert: %d %s", w.Code, w.Body.String())
	}
	return h
}

// --- sets ---

func TestPutSet(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodPut, "/sets/Person", personSet)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp SetResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IDPath != "StructureId" || resp.IDKind != "identity" {
		t.Errorf("id = %s/%s", resp.IDPath, resp.IDKind)
	}
	if len(resp.Members) != 3 || !resp.Members[0].Unique {
		t.Errorf("members = %+v", resp.Members)
	}
	want := []string{"PersonStructure", "PersonIndexes", "PersonUniques"}
	for i, tbl := range want {
		if resp.Tables[i] != tbl {
			t.Errorf("tables[%d] = %s, want %s", i, resp.Tables[i], tbl)
		}
	}

	list := do(t, h, http.MethodGet, "/sets", "")
	if !strings.Contains(list.Body.String(), `"Person"`) {
		t.Errorf("list = %s", list.Body.String())
	}
}

func TestPutSet_Errors(t *testing.T) {
	tests := []struct {
		name     string
		set      string
		body     string
		wantCode ErrorCode
	}{
		{"bad json", "Person", `{`, ErrorCodeBadRequest},
		{"unknown kind", "Person", `{"members": [{"path": "A", "kind": "text"}]}`, ErrorCodeValidationFailed},
		{"bad name", "9lives", `{"members": []}`, ErrorCodeValidationFailed},
		{"bad json schema", "Person", `{"members": [], "json_schema": {"type": 12}}`, ErrorCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t)
			w := do(t, h, http.MethodPut, "/sets/"+tt.set, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestGetSet_NotFound(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/sets/Nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if got := decodeError(t, w).Code; got != ErrorCodeSetNotFound {
		t.Errorf("code = %s", got)
	}
}

func TestDeleteSet(t *testing.T) {
	h := seeded(t)
	if w := do(t, h, http.MethodDelete, "/sets/Person", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodGet, "/sets/Person", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after drop, got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/sets/Person", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second drop, got %d", w.Code)
	}
}

func TestSyncSet(t *testing.T) {
	h := seeded(t)
	if w := do(t, h, http.MethodPost, "/sets/Person/sync", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
}

// --- documents ---

func TestInsertDocuments(t *testing.T) {
	_, h := newTestServer(t)
	do(t, h, http.MethodPut, "/sets/Person", personSet)

	w := do(t, h, http.MethodPost, "/sets/Person/documents",
		`{"documents": [{"Name": "ann"}, {"Name": "bob", "StructureId": 50}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp InsertResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.IDs) != 2 || resp.IDs[0] != "1" || resp.IDs[1] != "50" {
		t.Errorf("ids = %v, want [1 50]", resp.IDs)
	}
}

func TestInsertDocuments_Errors(t *testing.T) {
	tests := []struct {
		name       string
		set        string
		body       string
		wantStatus int
		wantCode   ErrorCode
	}{
		{"empty batch", "Person", `{"documents": []}`, http.StatusBadRequest, ErrorCodeValidationFailed},
		{"too many", "Person", `{"documents": [{"Name":"a"},{"Name":"b"},{"Name":"c"},{"Name":"d"}]}`,
			http.StatusBadRequest, ErrorCodeValidationFailed},
		{"json schema violation", "Person", `{"documents": [{"Age": 3}]}`, http.StatusBadRequest, ErrorCodeValidationFailed},
		{"duplicate unique", "Person", `{"documents": [{"Name": "ann"}]}`, http.StatusConflict, ErrorCodeUniqueViolation},
		{"unknown set", "Nope", `{"documents": [{"Name": "x"}]}`, http.StatusNotFound, ErrorCodeSetNotFound},
		{"wrong member shape", "Person", `{"documents": [{"Name": {"first": "x"}}]}`,
			http.StatusUnprocessableEntity, ErrorCodeSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := seeded(t)
			w := do(t, h, http.MethodPost, "/sets/"+tt.set+"/documents", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestGetDocument(t *testing.T) {
	h := seeded(t)
	w := do(t, h, http.MethodGet, "/sets/Person/documents/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var doc map[string]any
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["Name"] != "bob" {
		t.Errorf("doc = %v", doc)
	}

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/sets/Person/documents/99", http.StatusNotFound},
		{"/sets/Person/documents/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := do(t, h, http.MethodGet, tt.path, ""); w.Code != tt.wantStatus {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.wantStatus)
		}
	}
}

func TestGetDocuments(t *testing.T) {
	h := seeded(t)
	tests := []struct {
		name string
		path string
		want []string
	}{
		{"by ids", "/sets/Person/documents?ids=3,1", []string{"ann", "cid"}},
		{"interval", "/sets/Person/documents?from=2&to=3", []string{"bob", "cid"}},
		{"all", "/sets/Person/documents", []string{"ann", "bob", "cid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, tt.path, "")
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			got := names(t, w)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("names = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateDocument(t *testing.T) {
	h := seeded(t)
	w := do(t, h, http.MethodPut, "/sets/Person/documents/2", `{"Name": "bobby", "Age": 26}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	got := do(t, h, http.MethodGet, "/sets/Person/documents/2", "")
	if !strings.Contains(got.Body.String(), `"bobby"`) {
		t.Errorf("doc = %s", got.Body.String())
	}

	q := do(t, h, http.MethodPost, "/sets/Person/count", `{"where": {"path": "Name", "op": "eq", "value": "bob"}}`)
	if !strings.Contains(q.Body.String(), `"count":0`) {
		t.Errorf("stale index row after update: %s", q.Body.String())
	}

	if w := do(t, h, http.MethodPut, "/sets/Person/documents/42", `{"Name": "ghost"}`); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPatchDocument(t *testing.T) {
	h := seeded(t)
	w := do(t, h, http.MethodPatch, "/sets/Person/documents/2", `{"Age": 27, "Tags": null}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	got := do(t, h, http.MethodGet, "/sets/Person/documents/2", "").Body.String()
	if !strings.Contains(got, `"bob"`) || !strings.Contains(got, `27`) || strings.Contains(got, "Tags") {
		t.Errorf("doc = %s", got)
	}
	q := do(t, h, http.MethodPost, "/sets/Person/count", `{"where": {"path": "Age", "op": "eq", "value": 27}}`)
	if !strings.Contains(q.Body.String(), `"count":1`) {
		t.Errorf("patched member not indexed: %s", q.Body.String())
	}

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"empty patch", "/sets/Person/documents/2", `{}`, http.StatusBadRequest},
		{"unknown document", "/sets/Person/documents/42", `{"Age": 1}`, http.StatusNotFound},
		{"bad id", "/sets/Person/documents/abc", `{"Age": 1}`, http.StatusBadRequest},
		{"unique clash", "/sets/Person/documents/2", `{"Name": "ann"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, h, http.MethodPatch, tt.path, tt.body); w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestDeleteDocument(t *testing.T) {
	h := seeded(t)
	if w := do(t, h, http.MethodDelete, "/sets/Person/documents/1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodDelete, "/sets/Person/documents/1", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- queries ---

func TestQuery(t *testing.T) {
	h := seeded(t)
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"sorted desc", `{"orderBy": [{"path": "Age", "desc": true}]}`, []string{"cid", "ann", "bob"}},
		{"where gt", `{"where": {"path": "Age", "op": "gt", "value": 30}, "orderBy": [{"path": "Name"}]}`,
			[]string{"ann", "cid"}},
		{"has element", `{"where": {"path": "Tags", "op": "hasElement", "value": "b"}, "orderBy": [{"path": "Age"}]}`,
			[]string{"bob", "ann"}},
		{"take", `{"orderBy": [{"path": "Age"}], "take": 1}`, []string{"bob"}},
		{"empty body", ``, []string{"ann", "bob", "cid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/sets/Person/query", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			got := names(t, w)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("names = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuery_Errors(t *testing.T) {
	h := seeded(t)
	tests := []struct {
		name     string
		body     string
		wantCode ErrorCode
	}{
		{"unknown member", `{"where": {"path": "Height", "op": "eq", "value": 1}}`, ErrorCodeInvalidQuery},
		{"unknown op", `{"where": {"path": "Age", "op": "near", "value": 1}}`, ErrorCodeInvalidQuery},
		{"unknown field", `{"filter": {}}`, ErrorCodeInvalidQuery},
		{"take with paging", `{"take": 2, "page": {"page": 0, "size": 2}}`, ErrorCodeInvalidQueryShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/sets/Person/query", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestCountAndDeleteByQuery(t *testing.T) {
	h := seeded(t)
	older := `{"where": {"path": "Age", "op": "gte", "value": 31}}`

	w := do(t, h, http.MethodPost, "/sets/Person/count", older)
	var count CountResponse
	if err := json.NewDecoder(w.Body).Decode(&count); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if count.Count != 2 {
		t.Errorf("count = %d, want 2", count.Count)
	}

	w = do(t, h, http.MethodPost, "/sets/Person/delete", older)
	var del DeleteResponse
	if err := json.NewDecoder(w.Body).Decode(&del); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if del.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", del.Deleted)
	}

	got := names(t, do(t, h, http.MethodPost, "/sets/Person/query", ``))
	if len(got) != 1 || got[0] != "bob" {
		t.Errorf("remaining = %v", got)
	}
}

func TestClearDocuments(t *testing.T) {
	h := seeded(t)
	w := do(t, h, http.MethodDelete, "/sets/Person/documents", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"deleted":3`) {
		t.Errorf("body = %s", w.Body.String())
	}
	if got := names(t, do(t, h, http.MethodPost, "/sets/Person/query", ``)); len(got) != 0 {
		t.Errorf("remaining = %v", got)
	}
	// unique rows are gone too
	if w := do(t, h, http.MethodPost, "/sets/Person/documents", `{"documents": [{"Name": "ann"}]}`); w.Code != http.StatusCreated {
		t.Errorf("reinsert: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodDelete, "/sets/Ghost/documents", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestExplain(t *testing.T) {
	h := seeded(t)
	w := do(t, h, http.MethodPost, "/sets/Person/explain", `{"where": {"path": "Name", "op": "eq", "value": "ann"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var ex queryuc.Explanation
	if err := json.NewDecoder(w.Body).Decode(&ex); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(ex.SQL, "PersonIndexes") || len(ex.Args) == 0 {
		t.Errorf("explanation = %+v", ex)
	}
}

func TestNamedQuery(t *testing.T) {
	srv, h := newTestServer(t)
	do(t, h, http.MethodPut, "/sets/Person", personSet)
	do(t, h, http.MethodPost, "/sets/Person/documents", `{"documents": [{"Name": "ann"}, {"Name": "bob"}]}`)

	srv.queries.RegisterNamed("second",
		`select "Json" from "PersonStructure" where "StructureId" = ?`)

	w := do(t, h, http.MethodPost, "/named/second", `{"args": [2]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := names(t, w); len(got) != 1 || got[0] != "bob" {
		t.Errorf("names = %v", got)
	}

	if w := do(t, h, http.MethodPost, "/named/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- health ---

func TestHealthCheck(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("health = %+v", resp)
	}
	if resp.Build.Version != version.Version {
		t.Errorf("build = %+v", resp.Build)
	}
}

func names(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var docs []map[string]any
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&docs); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["Name"].(string)
	}
	return out
}
