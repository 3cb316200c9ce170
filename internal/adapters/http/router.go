package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
	"github.com/bidworks/ingest-pipeline/internal/core/ports"
	"github.com/bidworks/ingest-pipeline/internal/observability/metrics"
)

// maxUploadBytes caps multipart parsing; bid schedules are small, proposal
// PDFs can run to tens of megabytes.
const maxUploadBytes = 64 << 20

type Router struct {
	ingestor    ports.DocumentIngestor
	reader      ports.DocumentReader
	categorizer ports.ProjectCategorizer
	generator   ports.PackageGenerator
	metrics     *metrics.HTTPServerMetrics
	service     string
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	reader ports.DocumentReader,
	categorizer ports.ProjectCategorizer,
	generator ports.PackageGenerator,
	m *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		ingestor:    ingestor,
		reader:      reader,
		categorizer: categorizer,
		generator:   generator,
		metrics:     m,
		service:     service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/projects/", rt.projectActions)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	projectID := strings.TrimSpace(r.FormValue("project_id"))
	if projectID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'project_id' is required"})
		return
	}
	docType := domain.DocumentType(strings.TrimSpace(r.FormValue("document_type")))
	if docType == "" {
		docType = domain.DocTypeOther
	}
	replace := r.FormValue("replace") == "true"

	doc, err := rt.ingestor.Upload(
		r.Context(),
		projectID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		docType,
		replace,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.service, string(doc.DocumentType))
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	if projectID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'project_id' is required"})
		return
	}

	var status *domain.DocumentStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s := domain.DocumentStatus(raw)
		status = &s
	}

	docs, err := rt.reader.ListByProject(r.Context(), projectID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		doc, err := rt.reader.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case action == "retry" && r.Method == http.MethodPost:
		doc, err := rt.reader.Retry(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, doc)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) projectActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/projects/")
	projectID, action, _ := strings.Cut(rest, "/")
	if projectID == "" || action == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	switch action {
	case "categorize":
		rt.categorizeProject(w, r, projectID)
	case "packages":
		rt.generatePackages(w, r, projectID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) categorizeProject(w http.ResponseWriter, r *http.Request, projectID string) {
	var req struct {
		BatchSize int  `json:"batch_size"`
		Force     bool `json:"force"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	result, err := rt.categorizer.CategorizeProject(r.Context(), projectID, req.BatchSize, req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordCategorization(rt.service,
			result.DirectMatches, result.AICategorized, result.ItemsFailed, result.ItemsRemaining)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) generatePackages(w http.ResponseWriter, r *http.Request, projectID string) {
	regenerate := r.URL.Query().Get("regenerate") == "true"
	if r.Body != nil && r.ContentLength != 0 {
		var req struct {
			Regenerate bool `json:"regenerate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		regenerate = regenerate || req.Regenerate
	}

	result, err := rt.generator.GeneratePackages(r.Context(), projectID, regenerate)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordPackageGeneration(rt.service,
			result.Strategy, result.PackagesCreated, result.ItemsLinked, result.ItemsFailed)
	}
	writeJSON(w, http.StatusCreated, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	writeJSON(w, status, map[string]string{
		"error":  err.Error(),
		"status": strconv.Itoa(status),
	})
}
