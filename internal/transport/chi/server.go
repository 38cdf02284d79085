package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/patch"
	domquery "github.com/kailas-cloud/structdex/internal/domain/query"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
	"github.com/kailas-cloud/structdex/internal/jsonrows"
	databaseuc "github.com/kailas-cloud/structdex/internal/usecase/database"
	documentuc "github.com/kailas-cloud/structdex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/structdex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/structdex/internal/usecase/query"
	"github.com/kailas-cloud/structdex/internal/version"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Synchronizer prunes stale side-table rows of a set on demand.
type Synchronizer interface {
	All(ctx context.Context, s *schema.Schema) error
}

// Server serves the structdex HTTP API.
type Server struct {
	sets          *databaseuc.Service
	queries       *queryuc.Service
	documents     *documentuc.Service
	sync          Synchronizer
	health        *healthuc.Service
	logger        *zap.Logger
	maxBatchSize  int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	sets *databaseuc.Service,
	queries *queryuc.Service,
	documents *documentuc.Service,
	sync Synchronizer,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		sets:         sets,
		queries:      queries,
		documents:    documents,
		sync:         sync,
		health:       health,
		logger:       logger,
		maxBatchSize: 1000,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrSetNotFound, http.StatusNotFound, ErrorCodeSetNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrUniqueViolation, http.StatusConflict, ErrorCodeUniqueViolation),
		sentinelHandler(domain.ErrInvalidQueryShape, http.StatusBadRequest, ErrorCodeInvalidQueryShape),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeInvalidQuery),
		sentinelHandler(domain.ErrUnsupportedIdentifierOperation, http.StatusBadRequest, ErrorCodeUnsupportedIDOp),
		sentinelHandler(domain.ErrSchemaMismatch, http.StatusUnprocessableEntity, ErrorCodeSchemaMismatch),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, ErrorCodeValidationFailed),
	}
	return s
}

// WithMaxBatchSize limits the documents accepted by one insert request.
func (s *Server) WithMaxBatchSize(n int) *Server {
	if n > 0 {
		s.maxBatchSize = n
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/sets", func(r chirouter.Router) {
		r.Get("/", s.ListSets)
		r.Route("/{set}", func(r chirouter.Router) {
			r.Get("/", s.GetSet)
			r.Put("/", s.PutSet)
			r.Delete("/", s.DeleteSet)
			r.Post("/sync", s.SyncSet)

			r.Get("/documents", s.GetDocuments)
			r.Post("/documents", s.InsertDocuments)
			r.Delete("/documents", s.ClearDocuments)
			r.Get("/documents/{id}", s.GetDocument)
			r.Put("/documents/{id}", s.UpdateDocument)
			r.Patch("/documents/{id}", s.PatchDocument)
			r.Delete("/documents/{id}", s.DeleteDocument)

			r.Post("/query", s.Query)
			r.Post("/count", s.Count)
			r.Post("/delete", s.DeleteByQuery)
			r.Post("/explain", s.Explain)
		})
	})
	r.Post("/named/{name}", s.NamedQuery)
}

// DefineSet builds a dynamic set from its declaration, creates its tables and
// installs its JSON Schema validator.
func (s *Server) DefineSet(ctx context.Context, name string, req SetRequest) (*schema.Schema, error) {
	members := make([]schema.MemberDefinition, len(req.Members))
	for i, m := range req.Members {
		members[i] = schema.MemberDefinition{
			Path:       m.Path,
			Kind:       schema.Kind(m.Kind),
			Enumerable: m.Enumerable,
			Unique:     m.Unique,
		}
	}
	sc, err := schema.FromDefinition(schema.Definition{
		Name:    name,
		ID:      schema.IDDefinition{Path: req.IDPath, Kind: schema.IDKind(req.IDKind)},
		Members: members,
	})
	if err != nil {
		return nil, err
	}
	jsonSchema := ""
	if len(req.JSONSchema) > 0 && string(req.JSONSchema) != "null" {
		jsonSchema = string(req.JSONSchema)
	}
	// validator first: a bad JSON Schema must not leave tables behind
	if err := s.documents.SetValidator(name, jsonSchema); err != nil {
		return nil, err
	}
	if err := s.sets.UpsertSet(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// ListSets handles GET /sets.
func (s *Server) ListSets(w http.ResponseWriter, _ *http.Request) {
	names := s.sets.Names()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, SetListResponse{Items: names})
}

// GetSet handles GET /sets/{set}.
func (s *Server) GetSet(w http.ResponseWriter, r *http.Request) {
	sc, err := s.sets.Schema(chirouter.URLParam(r, "set"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setToDTO(sc))
}

// PutSet handles PUT /sets/{set}.
func (s *Server) PutSet(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	sc, err := s.DefineSet(r.Context(), chirouter.URLParam(r, "set"), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setToDTO(sc))
}

// DeleteSet handles DELETE /sets/{set}.
func (s *Server) DeleteSet(w http.ResponseWriter, r *http.Request) {
	name := chirouter.URLParam(r, "set")
	if err := s.sets.DropSet(r.Context(), name); err != nil {
		s.handleDomainError(w, err)
		return
	}
	_ = s.documents.SetValidator(name, "")
	w.WriteHeader(http.StatusNoContent)
}

// SyncSet handles POST /sets/{set}/sync.
func (s *Server) SyncSet(w http.ResponseWriter, r *http.Request) {
	sc, err := s.sets.Schema(chirouter.URLParam(r, "set"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if err := s.sync.All(r.Context(), sc); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InsertDocuments handles POST /sets/{set}/documents.
func (s *Server) InsertDocuments(w http.ResponseWriter, r *http.Request) {
	var req InsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 || len(req.Documents) > s.maxBatchSize {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", s.maxBatchSize))
		return
	}

	ids, err := s.documents.InsertJSON(r.Context(), chirouter.URLParam(r, "set"), req.Documents)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	resp := InsertResponse{IDs: make([]string, len(ids))}
	for i, id := range ids {
		resp.IDs[i] = id.String()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetDocument handles GET /sets/{set}/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	set := chirouter.URLParam(r, "set")
	id, err := s.queries.ParseID(set, chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	doc, err := s.queries.GetByID(r.Context(), set, id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// GetDocuments handles GET /sets/{set}/documents?ids=1,2,3 and
// GET /sets/{set}/documents?from=1&to=9.
func (s *Server) GetDocuments(w http.ResponseWriter, r *http.Request) {
	set := chirouter.URLParam(r, "set")
	q := r.URL.Query()

	var (
		it  *jsonrows.Iterator
		err error
	)
	switch {
	case q.Get("ids") != "":
		var ids []structure.ID
		ids, err = s.parseIDs(set, strings.Split(q.Get("ids"), ","))
		if err == nil {
			it, err = s.queries.GetByIDs(r.Context(), set, ids)
		}
	case q.Get("from") != "" && q.Get("to") != "":
		var bounds []structure.ID
		bounds, err = s.parseIDs(set, []string{q.Get("from"), q.Get("to")})
		if err == nil {
			it, err = s.queries.GetByIDInterval(r.Context(), set, bounds[0], bounds[1])
		}
	default:
		it, err = s.queries.Query(r.Context(), set, domquery.Query{})
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.stream(w, r, it)
}

// UpdateDocument handles PUT /sets/{set}/documents/{id}.
func (s *Server) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	set := chirouter.URLParam(r, "set")
	id, err := s.queries.ParseID(set, chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	var doc json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.documents.UpdateJSON(r.Context(), set, id, doc); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatchDocument handles PATCH /sets/{set}/documents/{id} with a JSON merge patch.
func (s *Server) PatchDocument(w http.ResponseWriter, r *http.Request) {
	set := chirouter.URLParam(r, "set")
	id, err := s.queries.ParseID(set, chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, patch.MaxSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.documents.PatchJSON(r.Context(), set, id, raw); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument handles DELETE /sets/{set}/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	set := chirouter.URLParam(r, "set")
	id, err := s.queries.ParseID(set, chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if err := s.documents.DeleteByID(r.Context(), set, id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Query handles POST /sets/{set}/query. Documents are streamed as a JSON array.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	it, err := s.queries.Query(r.Context(), chirouter.URLParam(r, "set"), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.stream(w, r, it)
}

// Count handles POST /sets/{set}/count.
func (s *Server) Count(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	n, err := s.queries.Count(r.Context(), chirouter.URLParam(r, "set"), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// DeleteByQuery handles POST /sets/{set}/delete.
func (s *Server) DeleteByQuery(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	n, err := s.documents.DeleteByQuery(r.Context(), chirouter.URLParam(r, "set"), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

// ClearDocuments handles DELETE /sets/{set}/documents.
func (s *Server) ClearDocuments(w http.ResponseWriter, r *http.Request) {
	n, err := s.documents.DeleteAll(r.Context(), chirouter.URLParam(r, "set"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

// Explain handles POST /sets/{set}/explain.
func (s *Server) Explain(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	ex, err := s.queries.Explain(chirouter.URLParam(r, "set"), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// NamedQuery handles POST /named/{name}.
func (s *Server) NamedQuery(w http.ResponseWriter, r *http.Request) {
	var req NamedQueryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}
	it, err := s.queries.NamedQuery(r.Context(), chirouter.URLParam(r, "name"), req.Args...)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.stream(w, r, it)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
		Build:  version.Get(),
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (domquery.Query, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return domquery.Query{}, false
	}
	q, err := domquery.Parse(body)
	if err != nil {
		s.handleDomainError(w, err)
		return domquery.Query{}, false
	}
	return q, true
}

func (s *Server) parseIDs(set string, raw []string) ([]structure.ID, error) {
	ids := make([]structure.ID, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		id, err := s.queries.ParseID(set, r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// stream writes the documents of it as a JSON array. Once the first byte is
// out the status cannot change, so a later error only aborts the response.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, it *jsonrows.Iterator) {
	defer func() { _ = it.Close() }()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	_, _ = w.Write([]byte("["))
	n := 0
	for doc, err := range it.Seq() {
		if err != nil {
			s.logger.Error("stream aborted",
				zap.String("path", r.URL.Path),
				zap.Int("written", n),
				zap.Error(err),
			)
			panic(http.ErrAbortHandler)
		}
		if n > 0 {
			_, _ = w.Write([]byte(","))
		}
		_, _ = w.Write([]byte(doc))
		n++
		if flusher != nil && n%100 == 0 {
			flusher.Flush()
		}
	}
	_, _ = w.Write([]byte("]\n"))
}

func setToDTO(sc *schema.Schema) SetResponse {
	idx := sc.Indexes()
	members := make([]MemberDTO, len(idx))
	for i := range idx {
		members[i] = MemberDTO{
			Path:       idx[i].Path(),
			Kind:       string(idx[i].Kind()),
			Enumerable: idx[i].Enumerable(),
			Unique:     idx[i].Unique(),
		}
	}
	return SetResponse{
		Name:    sc.Name(),
		IDPath:  sc.ID().Path(),
		IDKind:  string(sc.ID().Kind()),
		Members: members,
		Tables:  []string{sc.StructureTable(), sc.IndexesTable(), sc.UniquesTable()},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSetNotFound,
		domain.ErrNotFound,
		domain.ErrUniqueViolation,
		domain.ErrInvalidQueryShape,
		domain.ErrInvalidQuery,
		domain.ErrUnsupportedIdentifierOperation,
		domain.ErrSchemaMismatch,
		domain.ErrInvalidSchema,
		domain.ErrInvalidDocument,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			// validation failures carry their detail for the caller
			if s == domain.ErrInvalidDocument || s == domain.ErrInvalidQuery ||
				s == domain.ErrInvalidQueryShape || s == domain.ErrInvalidSchema {
				return err.Error()
			}
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
