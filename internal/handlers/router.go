package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/catalystcommunity/app-utils-go/errorutils"
	"github.com/pirate-baby/ATC/internal/archive"
	"github.com/pirate-baby/ATC/internal/claudecli"
	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/crypto"
	"github.com/pirate-baby/ATC/internal/events"
	"github.com/pirate-baby/ATC/internal/metrics"
	"github.com/pirate-baby/ATC/internal/middleware"
	"github.com/pirate-baby/ATC/internal/monitor"
	"github.com/pirate-baby/ATC/internal/pool"
	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/models"

	"github.com/rs/cors"
)

var (
	// Singleton instance of the app's ServeMux
	appMux *http.ServeMux
	// Validator used by the mux; settable before first GetAppMux call so
	// tests and CLI-less deployments can substitute the mock
	singletonValidator claudecli.Validator
	// Token cipher shared by every handler
	singletonCipher *crypto.TokenCipher
	// In-process pool event fan-out
	singletonBroadcaster *events.Broadcaster
	// Allocator behind the internal surface
	singletonAllocator *pool.Allocator
	// Snapshot archive backing the admin history listing (may stay nil)
	singletonArchiveStore archive.Store
	// Resource monitor feeding the detailed health endpoint (may stay nil)
	singletonMonitor *monitor.ResourceMonitor

	serverStart = time.Now()
)

// GetAppMux returns the application's HTTP ServeMux for both API and tests.
// This ensures all tests use the same router configuration as the actual
// application.
func GetAppMux() *http.ServeMux {
	if appMux == nil {
		appMux = createAppMux()
	}
	return appMux
}

// SetValidator overrides the credential validator. Must be called before the
// first GetAppMux call to take effect.
func SetValidator(v claudecli.Validator) {
	singletonValidator = v
}

// SetArchiveStore sets the snapshot archive used by the admin listing
func SetArchiveStore(s archive.Store) {
	singletonArchiveStore = s
}

// GetArchiveStore returns the singleton snapshot archive
func GetArchiveStore() archive.Store {
	return singletonArchiveStore
}

// SetResourceMonitor wires the resource monitor into the health endpoint
func SetResourceMonitor(m *monitor.ResourceMonitor) {
	singletonMonitor = m
}

// GetBroadcaster returns the pool event broadcaster, creating it if needed
func GetBroadcaster() *events.Broadcaster {
	if singletonBroadcaster == nil {
		singletonBroadcaster = events.NewBroadcaster()
	}
	return singletonBroadcaster
}

// GetAllocator returns the pool allocator behind the internal surface
func GetAllocator() *pool.Allocator {
	if singletonAllocator == nil {
		singletonAllocator = pool.NewAllocator(getCipher(), GetBroadcaster())
	}
	return singletonAllocator
}

// ResetAppMux resets the router singletons (useful for testing)
func ResetAppMux() {
	appMux = nil
	singletonValidator = nil
	singletonCipher = nil
	singletonBroadcaster = nil
	singletonAllocator = nil
	singletonArchiveStore = nil
	singletonMonitor = nil
}

// getCipher builds the token cipher from config. A standalone passphrase
// wins over the shared-JWT-secret derivation when both are set.
func getCipher() *crypto.TokenCipher {
	if singletonCipher != nil {
		return singletonCipher
	}

	var err error
	if config.EncryptionPassphrase != "" {
		singletonCipher, err = crypto.NewTokenCipherFromPassphrase(config.EncryptionPassphrase)
	} else {
		singletonCipher, err = crypto.NewTokenCipher(config.JwtSecret)
	}
	errorutils.PanicOnErr(nil, "error initializing token cipher", err)
	return singletonCipher
}

// createAppMux creates and configures the application ServeMux with all routes
func createAppMux() *http.ServeMux {
	mux := http.NewServeMux()

	cipher := getCipher()
	broadcaster := GetBroadcaster()

	if singletonValidator == nil {
		singletonValidator = claudecli.NewCLIValidator()
	}

	if singletonArchiveStore == nil && config.SnapshotIntervalMinutes > 0 {
		archiveStore, err := archive.New(archive.Config{
			Backend:  config.ArchiveBackend,
			BasePath: config.ArchiveBasePath,
			Bucket:   config.ArchiveBucket,
			Prefix:   config.ArchivePrefix,
			Region:   config.ArchiveRegion,
			Endpoint: config.ArchiveEndpoint,
		})
		if err != nil {
			errorutils.LogOnErr(nil, "failed to initialize snapshot archive, history will be unavailable", err)
		} else {
			singletonArchiveStore = archiveStore
		}
	}

	claudeTokenHandler := NewClaudeTokenHandler(store.AppStore, cipher, singletonValidator, broadcaster)
	poolHandler := NewPoolHandler()
	internalHandler := NewInternalHandler(GetAllocator())
	adminHandler := NewAdminHandler(store.AppStore, cipher, singletonArchiveStore)
	eventsHandler := NewEventsHandler(store.AppStore, broadcaster)

	// Middleware chains
	transactionMiddleware := middleware.TransactionMiddleware
	jwtMiddleware := middleware.JWTAuthMiddleware(store.AppStore)
	serviceMiddleware := middleware.ServiceTokenMiddleware(store.AppStore)
	adminMiddleware := middleware.RequireRoleMiddleware(models.UserRoleAdmin)
	validateLimiter := middleware.NewRateLimiter(config.ValidateRatePerMinute, config.ValidateBurst)

	// Liveness endpoints (no auth, no transaction)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		healthHandler(w, r)
	})

	mux.HandleFunc("/health/details", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		healthDetailsHandler(w, r)
	})

	// Prometheus metrics (no auth)
	mux.Handle("/metrics", metrics.Handler())

	// User surface: contributed token CRUD (JWT auth)
	mux.HandleFunc("/api/v1/claude-tokens", func(w http.ResponseWriter, r *http.Request) {
		handler := transactionMiddleware(jwtMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				claudeTokenHandler.CreateToken(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})))
		handler.ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/v1/claude-tokens/me", func(w http.ResponseWriter, r *http.Request) {
		handler := transactionMiddleware(jwtMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				claudeTokenHandler.GetMyToken(w, r)
			case http.MethodPatch:
				claudeTokenHandler.UpdateMyToken(w, r)
			case http.MethodDelete:
				claudeTokenHandler.DeleteMyToken(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})))
		handler.ServeHTTP(w, r)
	})

	// Live validation is rate limited per client IP to protect the CLI
	mux.HandleFunc("/api/v1/claude-tokens/validate", func(w http.ResponseWriter, r *http.Request) {
		handler := validateLimiter.Middleware(transactionMiddleware(jwtMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				claudeTokenHandler.ValidateMyToken(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}))))
		handler.ServeHTTP(w, r)
	})

	// Anonymized pool dashboard (JWT auth)
	mux.HandleFunc("/api/v1/claude-tokens/pool/status", func(w http.ResponseWriter, r *http.Request) {
		handler := transactionMiddleware(jwtMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				poolHandler.GetPoolStatus(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})))
		handler.ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/v1/claude-tokens/pool/stats", func(w http.ResponseWriter, r *http.Request) {
		handler := transactionMiddleware(jwtMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				poolHandler.GetPoolStats(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})))
		handler.ServeHTTP(w, r)
	})

	// Pool event stream. Auth happens inside the handler (query-param JWT);
	// no per-request transaction since the connection is long-lived.
	mux.HandleFunc("/ws/claude-tokens/pool/events", eventsHandler.Stream)

	// Internal allocation surface (service-token auth)
	mux.HandleFunc("/internal/v1/claude-tokens/acquire", func(w http.ResponseWriter, r *http.Request) {
		handler := transactionMiddleware(serviceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				internalHandler.Acquire(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})))
		handler.ServeHTTP(w, r)
	})

	mux.HandleFunc("/internal/v1/claude-tokens/report", func(w http.ResponseWriter, r *http.Request) {
		handler := transactionMiddleware(serviceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				internalHandler.Report(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})))
		handler.ServeHTTP(w, r)
	})

	// Admin debug surface (JWT auth + admin role)
	mux.HandleFunc("/api/v1/admin/claude-tokens", func(w http.ResponseWriter, r *http.Request) {
		handler := transactionMiddleware(jwtMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				adminHandler.ListTokens(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}))))
		handler.ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/v1/admin/claude-tokens/snapshots", func(w http.ResponseWriter, r *http.Request) {
		handler := transactionMiddleware(jwtMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				adminHandler.ListSnapshots(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}))))
		handler.ServeHTTP(w, r)
	})

	return mux
}

// NewRouter creates the HTTP handler for the API server with CORS applied
func NewRouter() http.Handler {
	mux := GetAppMux()

	allowedOrigins := strings.Split(config.CorsAllowedOrigins, ",")
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Service-Token"},
		AllowCredentials: true,
	})

	return c.Handler(mux)
}

// healthHandler answers container liveness probes
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "OK",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// healthDetailsHandler adds a database ping and the latest resource sample
func healthDetailsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := map[string]interface{}{
		"status": "OK",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"uptime": time.Since(serverStart).String(),
	}

	status := http.StatusOK
	dbStatus := "ok"
	if db := store.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil {
			dbStatus = "error: " + err.Error()
			status = http.StatusServiceUnavailable
		} else if err := sqlDB.PingContext(r.Context()); err != nil {
			dbStatus = "error: " + err.Error()
			status = http.StatusServiceUnavailable
		}
	} else {
		dbStatus = "not initialized"
		status = http.StatusServiceUnavailable
	}
	response["database"] = dbStatus

	if singletonMonitor != nil {
		response["resources"] = singletonMonitor.GetSample()
	}

	if status != http.StatusOK {
		response["status"] = "DEGRADED"
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
