package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/pratik-mahalle/resourcectl/internal/api/middleware"
	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
	"github.com/pratik-mahalle/resourcectl/pkg/client"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewTestLogger returns a logger that only prints errors
func NewTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

// NewTestServer serves the resource API over backend. When apiKey is set,
// requests without a matching X-API-Key header are rejected with 401.
// The server is closed when the test ends.
func NewTestServer(t *testing.T, backend *FakeBackend, apiKey string) *httptest.Server {
	t.Helper()

	h := &apiHandler{backend: backend}
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(NewTestLogger()))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, client.HealthResponse{Status: "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(apiKey))

		r.Get("/api/resources", h.list)
		r.Get("/api/server-config", h.serverConfig)
		r.Post("/api/resource/connect", h.connect)
		r.Route("/api/resource/{id}", func(r chi.Router) {
			r.Post("/edit", h.edit)
			r.Post("/test", h.test)
			r.Post("/delete", h.delete)
			r.Get("/discover", h.discover)
			r.Get("/preview", h.preview)
			r.Get("/operators", h.operators)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func requireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" && r.Header.Get(client.HeaderAPIKey) != key {
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type apiHandler struct {
	backend *FakeBackend
}

func (h *apiHandler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.backend.ListResources(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}

	out := make([]client.Resource, 0, len(records))
	for _, rec := range records {
		config, ok := h.backend.RawConfig(rec.ID)
		if !ok {
			config = make(map[string]interface{}, len(rec.Config))
			for k, v := range rec.Config {
				config[k] = v
			}
		}
		res := client.Resource{
			ID:        rec.ID,
			Service:   rec.Service,
			Name:      rec.Name,
			Config:    config,
			CreatedAt: rec.CreatedAt,
			ExecState: &client.ExecState{Status: string(rec.ExecState.Status)},
		}
		if e := rec.ExecState.Error; e != nil {
			res.ExecState.Error = &client.ExecError{Tip: e.Tip, Context: e.Context}
		}
		out = append(out, res)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *apiHandler) serverConfig(w http.ResponseWriter, r *http.Request) {
	sc, err := h.backend.ServerConfig(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}

	out := client.ServerConfig{
		Version:       sc.Version,
		StorageConfig: client.StorageConfig{Type: sc.StorageConfig.Type},
	}
	if s3 := sc.StorageConfig.S3; s3 != nil {
		out.StorageConfig.S3Config = &client.S3StorageConfig{Bucket: s3.Bucket, Region: s3.Region, RootDir: s3.RootDir}
	}
	if gcs := sc.StorageConfig.GCS; gcs != nil {
		out.StorageConfig.GCSConfig = &client.GCSStorageConfig{Bucket: gcs.Bucket}
	}
	if f := sc.StorageConfig.File; f != nil {
		out.StorageConfig.FileConfig = &client.FileStorageConfig{Directory: f.Directory}
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *apiHandler) connect(w http.ResponseWriter, r *http.Request) {
	config, ok := configFromHeader(w, r)
	if !ok {
		return
	}
	kind, err := resource.ParseServiceKind(r.Header.Get(client.HeaderService))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeOf(err), err.Error())
		return
	}

	if err := h.backend.Connect(r.Context(), kind, r.Header.Get(client.HeaderName), config); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *apiHandler) edit(w http.ResponseWriter, r *http.Request) {
	config, ok := configFromHeader(w, r)
	if !ok {
		return
	}
	if err := h.backend.Edit(r.Context(), chi.URLParam(r, "id"), r.Header.Get(client.HeaderName), config); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *apiHandler) test(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Test(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *apiHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *apiHandler) discover(w http.ResponseWriter, r *http.Request) {
	names, err := h.backend.Discover(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, client.DiscoverResponse{ObjectNames: names})
}

func (h *apiHandler) preview(w http.ResponseWriter, r *http.Request) {
	data, err := h.backend.Preview(r.Context(), chi.URLParam(r, "id"), r.Header.Get(client.HeaderObjectName))
	if err != nil {
		respondAppError(w, err)
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, client.PreviewResponse{Data: raw})
}

func (h *apiHandler) operators(w http.ResponseWriter, r *http.Request) {
	usage, err := h.backend.Operators(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	out := make([]client.OperatorUsage, len(usage))
	for i, u := range usage {
		out[i] = client.OperatorUsage{ResourceID: u.ResourceID, WorkflowID: u.WorkflowID, DagID: u.DagID, IsActive: u.IsActive}
	}
	respondJSON(w, http.StatusOK, client.OperatorsResponse{Operators: out})
}

func configFromHeader(w http.ResponseWriter, r *http.Request) (resource.Fields, bool) {
	config := resource.Fields{}
	if raw := r.Header.Get(client.HeaderConfig); raw != "" {
		if err := json.UnmarshalFromString(raw, &config); err != nil {
			respondError(w, http.StatusBadRequest, errors.ErrCodeValidation, "config header is not a JSON object")
			return nil, false
		}
	}
	return config, true
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response in the shape client.APIError decodes
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, client.APIError{Code: code, Message: message})
}

func respondAppError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeNameConflict:
		status = http.StatusConflict
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeValidation:
		status = http.StatusBadRequest
	}
	respondError(w, status, code, err.Error())
}
