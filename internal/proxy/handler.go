package proxy

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewHandler returns a router that forwards memory inspection routes to
// the backend client. Responses are passed through verbatim.
func NewHandler(client *Client) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", forward(client, func(r *http.Request) string {
		return "/api/health"
	}))
	r.Get("/memories/{userID}", forward(client, func(r *http.Request) string {
		return "/api/memories/" + chi.URLParam(r, "userID")
	}))
	r.Get("/search", forward(client, func(r *http.Request) string {
		return "/api/search"
	}))
	r.Get("/stats", forward(client, func(r *http.Request) string {
		return "/api/stats"
	}))

	return r
}

func forward(client *Client, path func(r *http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := client.Get(r.Context(), path(r), r.URL.RawQuery)
		if err != nil {
			slog.Error("memory proxy request failed", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprintf(w, `{"error":{"type":"bad_gateway","message":"memory backend unavailable"}}`)
			return
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			slog.Error("copying proxied response", "path", r.URL.Path, "error", err)
		}
	}
}
