package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MansurAzad/cashbook/internal/api/handlers"
	"github.com/MansurAzad/cashbook/internal/api/middleware"
	"github.com/MansurAzad/cashbook/internal/datasync"
	"github.com/MansurAzad/cashbook/internal/domain"
	"github.com/MansurAzad/cashbook/internal/gateway"
	"github.com/MansurAzad/cashbook/internal/gateway/gcs"
	"github.com/MansurAzad/cashbook/internal/localstore"
	"github.com/MansurAzad/cashbook/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		port      = flag.String("port", "8080", "HTTP server port")
		storePath = flag.String("store", defaultStorePath(), "path to the local store file")
		bucket    = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for remote records (or set GCS_BUCKET env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	ctx := context.Background()

	// Initialize local store and remote gateway
	store := localstore.Open(*storePath, log)

	var remote gateway.Remote
	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - running in offline mode")
	} else {
		gw, err := gcs.New(ctx, *bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS gateway")
		}
		defer gw.Close()
		remote = gw
	}

	svc := datasync.New(store, remote, log)

	// Drain any operations left over from a previous run
	if svc.Online() {
		svc.Drain(ctx)
	}

	// Initialize handlers
	dataHandler := handlers.NewDataHandler(svc, log)
	reportsHandler := handlers.NewReportsHandler(svc, log)

	// Create router
	mux := http.NewServeMux()

	// Snapshot endpoint
	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			dataHandler.GetData(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			dataHandler.AddTransaction(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		switch r.Method {
		case http.MethodPut:
			dataHandler.UpdateTransaction(w, r, id)
		case http.MethodDelete:
			dataHandler.DeleteTransaction(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Generic record endpoints
	mux.HandleFunc("/api/records/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/records/")
		kindStr, id, _ := strings.Cut(rest, "/")
		if kindStr == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Record kind is required")
			return
		}
		kind := domain.Kind(kindStr)

		switch {
		case r.Method == http.MethodPost && id == "":
			dataHandler.AddRecord(w, r, kind)
		case r.Method == http.MethodPut && id != "":
			dataHandler.UpdateRecord(w, r, kind, id)
		case r.Method == http.MethodDelete && id != "":
			dataHandler.DeleteRecord(w, r, kind, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Settings endpoints
	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			dataHandler.GetSettings(w, r)
		case http.MethodPut:
			dataHandler.SaveSettings(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Reports endpoints
	mux.HandleFunc("/api/reports/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportsHandler.GetHealth(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/reports/budgets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportsHandler.GetBudgets(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/reports/totals", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportsHandler.GetTotals(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func defaultStorePath() string {
	if p := os.Getenv("CASHBOOK_STORE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "cashbook.json"
	}
	return home + "/.cashbook/store.json"
}
