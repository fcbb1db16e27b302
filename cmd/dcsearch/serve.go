package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/donorschoose-client/internal/config"
	"github.com/Sternrassler/donorschoose-client/pkg/client"
	"github.com/Sternrassler/donorschoose-client/pkg/logging"
	"github.com/Sternrassler/donorschoose-client/pkg/metrics"
	"github.com/Sternrassler/donorschoose-client/pkg/pagination"
	"github.com/Sternrassler/donorschoose-client/pkg/query"
	"github.com/Sternrassler/donorschoose-client/pkg/results"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// searchFunc runs one complete search.
type searchFunc func(ctx context.Context, keywords string, opts queryOptions) (*results.Accumulator, error)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve searches over HTTP",
		Long: `Serve exposes /search?keywords=... returning the merged results as JSON,
plus /health and Prometheus /metrics. Query parameters filter (name=value,
repeatable), bbox (north,west,south,east) and concise mirror the search flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}

	cmd.Flags().String("listen", "", "listen address (default :8080)")
	bindFlags(a.v, cmd.Flags(), map[string]string{config.KeyListen: "listen"})

	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	logger := logging.NewLogger("server")

	s, err := a.newSearcher(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           newRouter(s.Search),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", a.cfg.Listen).Str("user_agent", a.cfg.UserAgent).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(search searchFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(logging.NewLogger("server")))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/search", searchHandler(search))
	return r
}

// loggingMiddleware logs each request with its status and duration.
func loggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func searchHandler(search searchFunc) http.HandlerFunc {
	logger := logging.NewLogger("server")

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		keywords := strings.TrimSpace(q.Get("keywords"))
		if keywords == "" {
			writeError(w, http.StatusBadRequest, "keywords is required")
			return
		}

		opts, err := parseQueryOptions(q["filter"], q.Get("bbox"), q.Get("concise") == "true")
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		acc, err := search(r.Context(), keywords, opts)
		if err != nil {
			status := statusFor(err)
			logger.Warn().Err(err).Str("keywords", keywords).Int("status", status).Msg("Search failed")
			writeError(w, status, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := results.FormatJSON(w, acc); err != nil {
			logger.Error().Err(err).Msg("Failed to write response")
		}
	}
}

// statusFor maps a search error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrTransport), errors.Is(err, pagination.ErrMaxPages):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
