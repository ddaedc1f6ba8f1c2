package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/griff-rees/estios/internal/store"
)

var servePort int

// shutdownGrace bounds how long in-flight requests may keep running after a
// termination signal.
const shutdownGrace = 10 * time.Second

// serveAndWait runs the server on ln until ctx is cancelled, then drains
// in-flight requests within the grace window before returning.
func serveAndWait(ctx context.Context, srv *http.Server, ln net.Listener) error {
	drained := make(chan error, 1)
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		drained <- srv.Shutdown(drainCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	if err := <-drained; err != nil {
		return eris.Wrap(err, "drain connections")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newServeRouter builds the read-only results API.
func newServeRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/results", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := store.ResultFilter{
			Scenario: q.Get("scenario"),
			Period:   q.Get("period"),
		}
		if s := q.Get("converged"); s != "" {
			converged, err := strconv.ParseBool(s)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "converged must be a boolean"})
				return
			}
			filter.Converged = &converged
		}
		if s := q.Get("limit"); s != "" {
			filter.Limit, _ = strconv.Atoi(s)
		}
		if s := q.Get("offset"); s != "" {
			filter.Offset, _ = strconv.Atoi(s)
		}

		summaries, err := st.ListResults(req.Context(), filter)
		if err != nil {
			zap.L().Error("list results failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list results failed"})
			return
		}
		if summaries == nil {
			summaries = []store.ResultSummary{}
		}
		writeJSON(w, http.StatusOK, summaries)
	})

	r.Get("/results/{hash}", func(w http.ResponseWriter, req *http.Request) {
		hash := chi.URLParam(req, "hash")
		result, err := st.GetResult(req.Context(), hash)
		if err != nil {
			zap.L().Error("get result failed", zap.String("hash", hash), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "get result failed"})
			return
		}
		if result == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "result not found"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only results API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newServeRouter(st),
		}

		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return serveAndWait(ctx, srv, ln)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
