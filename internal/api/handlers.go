package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"percept/internal/ingest"
	"percept/internal/profile"
	"percept/internal/profiling"
	"percept/internal/storage"
)

const maxRequestBodySize = 10 << 20 // 10MB

// AppDeps holds the wired components the HTTP layer serves.
type AppDeps struct {
	Store    *storage.Store
	Profile  *profile.Manager
	Analyzer *profiling.Analyzer
	Ingestor *ingest.Ingestor
	Memory   http.Handler // memory backend proxy; optional
	Token    string
}

// NewAppHandler builds the full router: a public health endpoint, the
// authenticated /v1 API, and the memory proxy.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/analyze", handleAnalyze(deps))
		r.Get("/profile", handleGetProfile(deps))
		r.Patch("/profile", handlePatchProfile(deps))
		r.Get("/analyses", handleListAnalyses(deps))
		r.Get("/analyses/{id}", handleGetAnalysis(deps))
		r.Delete("/analyses/{id}", handleDeleteAnalysis(deps))
		r.Post("/ingest", handleIngest(deps))
	})

	if deps.Memory != nil {
		r.Route("/memory", func(r chi.Router) {
			r.Use(BearerAuth(deps.Token))
			r.Mount("/", deps.Memory)
		})
	}

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Query    string            `json:"query"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AnalyzeResponse wraps the produced context profile with its stored run ID.
type AnalyzeResponse struct {
	ID        string                   `json:"id"`
	CreatedAt time.Time                `json:"created_at"`
	Profile   profiling.ContextProfile `json:"profile"`
}

func handleAnalyze(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		user, err := currentProfile(deps.Profile)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading profile: %v", err)
			return
		}

		result, err := deps.Analyzer.Analyze(req.Query, profiling.Request{
			Profile:  user,
			Metadata: req.Metadata,
		})
		if err != nil {
			if errors.Is(err, profiling.ErrMalformedQuery) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "analysis failed: %v", err)
			return
		}

		resp := AnalyzeResponse{
			ID:        uuid.New().String(),
			CreatedAt: time.Now().UTC(),
			Profile:   result,
		}

		profileJSON, err := json.Marshal(result)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "marshalling profile: %v", err)
			return
		}
		run := storage.AnalysisRun{
			ID:          resp.ID,
			CreatedAt:   resp.CreatedAt,
			Query:       req.Query,
			ProfileJSON: string(profileJSON),
			Confidence:  result.ConfidenceScore,
		}
		if err := deps.Store.SaveAnalysis(run); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving analysis: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// currentProfile loads the stored profile, mapping an unconfigured store
// to a nil profile so the analyzer applies no nudges.
func currentProfile(mgr *profile.Manager) (*profile.UserProfile, error) {
	p, err := mgr.GetProfile()
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return nil, nil
	}
	return &p, nil
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePatchProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var fields map[string]string
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(fields) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no fields to update")
			return
		}

		for key, value := range fields {
			if err := deps.Profile.SetField(key, value); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
		}

		p, err := deps.Profile.GetProfile()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleListAnalyses(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 200 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be an integer between 1 and 200")
				return
			}
			limit = n
		}

		runs, err := deps.Store.ListAnalyses(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing analyses: %v", err)
			return
		}

		type runSummary struct {
			ID         string    `json:"id"`
			CreatedAt  time.Time `json:"created_at"`
			Query      string    `json:"query"`
			Confidence float64   `json:"confidence"`
		}
		summaries := make([]runSummary, len(runs))
		for i, run := range runs {
			summaries[i] = runSummary{
				ID:         run.ID,
				CreatedAt:  run.CreatedAt,
				Query:      run.Query,
				Confidence: run.Confidence,
			}
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func handleGetAnalysis(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		run, err := deps.Store.GetAnalysis(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "analysis %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading analysis: %v", err)
			return
		}

		var result profiling.ContextProfile
		if err := json.Unmarshal([]byte(run.ProfileJSON), &result); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "stored profile is corrupt: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, AnalyzeResponse{
			ID:        run.ID,
			CreatedAt: run.CreatedAt,
			Profile:   result,
		})
	}
}

func handleDeleteAnalysis(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := deps.Store.DeleteAnalysis(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "analysis %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting analysis: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// IngestRequest is the body of POST /v1/ingest.
type IngestRequest struct {
	Sources []ingest.Source `json:"sources"`
}

func handleIngest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Sources) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one source is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()

		results, err := deps.Ingestor.IngestBatch(ctx, req.Sources)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ingestion failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}
