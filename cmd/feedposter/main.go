package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"feedposter/internal/automation"
	"feedposter/internal/config"
	"feedposter/internal/feed"
	"feedposter/internal/logger"
	"feedposter/internal/metrics"
	"feedposter/internal/publish"
	"feedposter/internal/storage"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage opened", "db_path", cfg.DBPath)

	fetcher := feed.NewFetcher(cfg.RequestTimeout, cfg.RetryAttempts, cfg.RetryDelay)
	publisher := publish.NewClient(cfg.PublishAPIURL, cfg.RequestTimeout)

	engine := automation.NewEngine(fetcher, publisher, store, cfg.Settings, cfg.PublishToken)
	if err := engine.LoadState(); err != nil {
		logger.Error("failed to load state", "error", err)
		os.Exit(1)
	}

	if err := engine.Start(); err != nil {
		if errors.Is(err, automation.ErrPreconditions) {
			logger.Warn("automation not started, configure PUBLISH_TOKEN and target_destination then use /api/start")
		} else {
			logger.Error("failed to start automation", "error", err)
			os.Exit(1)
		}
	}

	go startControlServer(engine, cfg.MonitoringPort)

	// Let an in-flight cycle finish before shutting down so its
	// submission outcomes are persisted.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	engine.Stop()
}

// startControlServer exposes health/metrics plus the automation
// control surface over HTTP.
func startControlServer(engine *automation.Engine, port string) {
	log := logger.With("http")
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := metrics.Global.GetStats()
		status := "ok"
		if !stats["is_healthy"].(bool) {
			status = "error"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		writeJSON(w, map[string]interface{}{
			"status":     status,
			"last_run":   stats["last_run_time"],
			"last_error": stats["last_error"],
		})
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, metrics.Global.GetStats())
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.Status())
	})

	mux.HandleFunc("/api/queue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.QueueSnapshot())
	})

	mux.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		writeJSON(w, engine.History(limit))
	})

	mux.HandleFunc("/api/start", requirePost(func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Start(); err != nil {
			http.Error(w, err.Error(), http.StatusPreconditionFailed)
			return
		}
		writeJSON(w, map[string]string{"status": "started"})
	}))

	mux.HandleFunc("/api/stop", requirePost(func(w http.ResponseWriter, r *http.Request) {
		engine.Stop()
		writeJSON(w, map[string]string{"status": "stopped"})
	}))

	mux.HandleFunc("/api/fetch", requirePost(func(w http.ResponseWriter, r *http.Request) {
		go engine.TriggerFetch()
		writeJSON(w, map[string]string{"status": "fetch triggered"})
	}))

	mux.HandleFunc("/api/remove", requirePost(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "id parameter required", http.StatusBadRequest)
			return
		}
		if err := engine.RemoveArticle(id); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"status": "removed"})
	}))

	mux.HandleFunc("/api/reset-bias", requirePost(func(w http.ResponseWriter, r *http.Request) {
		if err := engine.ResetBias(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "bias reset"})
	}))

	log.Info("control server listening", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Error("control server failed", "error", err)
	}
}

func requirePost(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}
