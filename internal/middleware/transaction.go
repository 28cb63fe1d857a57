package middleware

import (
	"context"
	"net/http"

	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/postgres_store"
	"gorm.io/gorm"
)

// TransactionMiddleware creates middleware that starts a transaction for each request
// and commits it for successful responses or rolls it back for errors
func TransactionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check if there's already a transaction in the context (for tests)
		existingTx, existingTxFound := r.Context().Value(postgres_store.GetTxContextKey()).(*gorm.DB)

		var tx *gorm.DB
		var shouldManageTx bool // Whether this middleware should manage the transaction

		if existingTxFound && existingTx != nil {
			// If there's already a transaction in the context, use it directly
			// but don't commit/rollback (let the test manage it)
			tx = existingTx
			shouldManageTx = false
		} else {
			// No transaction in context, create a new one
			db := store.GetDB()
			if db == nil {
				http.Error(w, "Database connection not available", http.StatusInternalServerError)
				return
			}

			// Begin a transaction
			tx = db.Begin()
			if tx.Error != nil {
				http.Error(w, "Failed to begin transaction", http.StatusInternalServerError)
				return
			}
			shouldManageTx = true
		}

		// Create a wrapper for the response writer to track the status code
		tw := &transactionResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 OK
		}

		// Always update the context with the current transaction (sub-transaction or new transaction)
		ctx := context.WithValue(r.Context(), postgres_store.GetTxContextKey(), tx)
		r = r.WithContext(ctx)

		// Call the next handler
		next.ServeHTTP(tw, r)

		// Only manage the transaction if we created it
		if shouldManageTx {
			// Check the status code to determine if we should commit or rollback
			if config.CommitOnSuccess && tw.statusCode >= 200 && tw.statusCode < 300 {
				// Success and CommitOnSuccess is true - commit the transaction
				if err := tx.Commit().Error; err != nil {
					// If commit fails, rollback and return an error
					tx.Rollback()
					http.Error(w, "Failed to commit transaction", http.StatusInternalServerError)
					return
				}
			} else {
				// Either CommitOnSuccess is false or there was an error - rollback the transaction
				tx.Rollback()
			}
		}
		// Otherwise, the transaction is managed by the test framework
	})
}

// transactionResponseWriter wraps http.ResponseWriter to track status code
type transactionResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader overrides the http.ResponseWriter.WriteHeader method to track status code
func (w *transactionResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
