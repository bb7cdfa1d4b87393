package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tripwire-iot/tripwire"
	"github.com/tripwire-iot/tripwire/render"
)

type server struct {
	engine  *tripwire.Engine
	loc     *time.Location
	script  func() tripwire.Script
	running atomic.Bool
	ctx     context.Context
}

type frameError struct {
	Frame string    `json:"frame"`
	At    time.Time `json:"at"`
	Error string    `json:"error"`
}

// newServer exposes the engine over HTTP. script supplies the sequence
// played by POST /test-event; runs are cancelled with ctx.
func newServer(ctx context.Context, engine *tripwire.Engine, gatherer prom.Gatherer, loc *time.Location, script func() tripwire.Script) http.Handler {
	s := &server{engine: engine, loc: loc, script: script, ctx: ctx}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /snapshot", s.snapshot)
	mux.HandleFunc("GET /cards", s.cards)
	mux.HandleFunc("GET /errors", s.recentErrors)
	mux.HandleFunc("POST /test-event", s.testEvent)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (s *server) snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *server) cards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, render.Cards(s.engine.Snapshot(), s.loc))
}

func (s *server) recentErrors(w http.ResponseWriter, _ *http.Request) {
	recent := s.engine.RecentErrors()
	out := make([]frameError, 0, len(recent))
	for _, fe := range recent {
		out = append(out, frameError{Frame: fe.Frame, At: fe.At, Error: fe.Err.Error()})
	}
	writeJSON(w, http.StatusOK, out)
}

// testEvent plays the synthetic script in the background, one run at a time.
func (s *server) testEvent(w http.ResponseWriter, _ *http.Request) {
	if s.engine.State() != tripwire.StateRunning {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		http.Error(w, "test sequence already running", http.StatusConflict)
		return
	}
	go func() {
		defer s.running.Store(false)
		if err := tripwire.NewDriver(s.engine, s.script()).Run(s.ctx); err != nil {
			log.Printf("WARN synthetic run stopped error=%q", err.Error())
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN response encode failed error=%q", err.Error())
	}
}

// serve runs handler on addr until ctx is cancelled.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("INFO http listening addr=%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
