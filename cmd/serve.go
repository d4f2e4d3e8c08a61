package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ToobaSh/urbanviz-cli/internal/pipeline"
	"github.com/ToobaSh/urbanviz-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(buildResolver(st), st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes. st may be nil when caching is off,
// which disables the history endpoint's backing store.
func newRouter(resolver *pipeline.Resolver, st *store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/resolve", func(w http.ResponseWriter, req *http.Request) {
		address := req.URL.Query().Get("address")
		preferPano := req.URL.Query().Get("prefer_pano") != "false"

		report, err := resolver.Resolve(req.Context(), address, pipeline.Options{
			PreferPano:  preferPano,
			ImageryMode: req.URL.Query().Get("provider"),
		})
		if err != nil {
			if errors.Is(err, pipeline.ErrEmptyAddress) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address is required"})
				return
			}
			zap.L().Error("api: resolve failed", zap.String("address", address), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "resolution failed"})
			return
		}

		writeJSON(w, http.StatusOK, report)
	})

	r.Get("/api/history", func(w http.ResponseWriter, req *http.Request) {
		if st == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
			return
		}
		rows, err := st.ListResolutions(req.Context(), 20)
		if err != nil {
			zap.L().Error("api: history failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
