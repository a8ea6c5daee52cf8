// Package app wires the process-level plumbing: the read-only dashboard
// server, the shared HTTP transport and the cron scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewHTTPServer serves the dashboard collaborator: a health probe, the
// current state document and the log stream. Read-only by design.
func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, st *store.Store) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, st)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, st *store.Store) http.Handler {
	ctrl := &controller{log, cfg, st}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("postnotify", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Get("/state", ctrl.viewState)
		r.Get("/logs", ctrl.viewLogs)
	})

	return r
}

type controller struct {
	log *zap.Logger
	cfg *config.Config
	st  *store.Store
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) viewState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := ctrl.st.Snapshot()
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(snapshot)
}

func (ctrl *controller) viewLogs(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(ctrl.cfg.LogFile)
	if err != nil {
		ctrl.reject(w, http.StatusNotFound, errors.New("log file not available"))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.Copy(w, f)
}
