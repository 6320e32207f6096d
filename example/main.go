package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/kzs0/strata"
	stratalog "github.com/kzs0/strata/log"
	"github.com/kzs0/strata/report"
	"github.com/kzs0/strata/server"
	"github.com/prometheus/client_golang/prometheus"
)

// logTransport prints finished events instead of sending them anywhere.
type logTransport struct {
	logger *slog.Logger
}

func (t logTransport) SendEvent(event *strata.Event) {
	t.logger.Info("event",
		"event_id", string(event.EventID),
		"type", string(event.Type),
		"transaction", event.Transaction,
		"message", event.Message,
		"tags", event.Tags)
}

func (t logTransport) SendSession(session strata.SessionSnapshot) {
	t.logger.Info("session", "status", string(session.Status), "errors", session.Errors)
}

func main() {
	ctx := context.Background()

	out := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger := slog.New(stratalog.NewHandler(&stratalog.HandlerOptions{Format: "text"}))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	recorder, err := report.NewRecorder(reg)
	if err != nil {
		logger.Error("register metrics", "error", err)
		os.Exit(1)
	}

	opts, err := strata.LoadOptions(strata.NewViper())
	if err != nil {
		opts = strata.DefaultOptions()
	}
	if opts.Release == "" {
		opts.Release = "example@0.1.0"
	}
	opts.TracesSampleRate = 1.0

	ctx, done := strata.Init(ctx,
		strata.WithOptions(opts),
		strata.WithClientOptions(
			strata.WithTransport(logTransport{logger: out}),
			strata.WithRecorder(recorder),
		),
		strata.WithSession(),
	)
	defer done()

	strata.GlobalScope().SetTag("service", "example-service")

	ops := server.New(reg, nil, server.DefaultConfig())
	go func() {
		logger.InfoContext(ctx, "ops server listening", "addr", ":9090")
		if err := ops.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "ops server error", "error", err)
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/users/{id}", handleUser).Methods(http.MethodGet)
	router.HandleFunc("/fanout", handleFanout).Methods(http.MethodGet)

	handler := strata.HTTPMiddleware(router, strata.WithTransactionNamer(routeName))

	appServer := &http.Server{
		Addr:              ":8080",
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.InfoContext(ctx, "application server listening", "addr", ":8080")
		if err := appServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			strata.CaptureException(ctx, err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.InfoContext(ctx, "received shutdown signal", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := appServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(ctx, "application server shutdown error", "error", err)
	}
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(ctx, "ops server shutdown error", "error", err)
	}
}

// routeName names transactions after the matched route template.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return r.Method + " " + tpl
		}
	}
	return r.Method + " " + r.URL.Path
}

func handleUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]
	strata.SetUser(ctx, strata.User{ID: id})

	ctx, span := strata.StartSpan(ctx, "db.query")
	span.SetData("db.statement", "SELECT * FROM users WHERE id = ?")
	time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
	span.Finish()

	if id == "0" {
		strata.CaptureException(ctx, fmt.Errorf("load user %s: %w", id, errNotFound))
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	slog.InfoContext(ctx, "user loaded", "id", id)
	fmt.Fprintf(w, "user %s\n", id)
}

var errNotFound = errors.New("user not found")

func handleFanout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := strata.NewHTTPClient(&http.Client{Timeout: 5 * time.Second})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:8080/users/1", nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		strata.CaptureException(ctx, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	fmt.Fprintf(w, "downstream answered %d\n", resp.StatusCode)
}
