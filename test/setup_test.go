package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pirate-baby/ATC/cmd"
	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/handlers"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestMain for all tests in the test package
func TestMain(m *testing.M) {
	// Use TEST_DB_URI when the caller provides a database, otherwise start a
	// throwaway postgres container for the duration of the run
	testDbUri := os.Getenv("TEST_DB_URI")
	var stopContainer func()
	if testDbUri == "" {
		var err error
		testDbUri, stopContainer, err = startTestPostgres()
		if err != nil {
			panic("Failed to start test database container: " + err.Error())
		}
		os.Setenv("TEST_DB_URI", testDbUri)
	}

	// Also set the main DB_URI for migrations
	config.DbUri = testDbUri
	os.Setenv("DB_URI", testDbUri)

	// Configure test environment to never commit transactions
	os.Setenv("ATC_COMMIT_ON_SUCCESS", "false")
	config.CommitOnSuccess = false

	// Shared secrets so the cipher, JWT verification, and service-token auth
	// all work without external configuration
	config.JwtSecret = "test-jwt-secret-for-the-token-pool-suite"
	config.ServiceToken = "test-static-service-token"

	// The validate endpoint's per-IP limiter would trip across tests that all
	// originate from httptest's fixed remote address
	config.ValidateRatePerMinute = 6000
	config.ValidateBurst = 1000

	// No Claude CLI in CI; every handler test drives the mock
	handlers.SetValidator(testValidator)

	// Simply run migrations before tests
	// This is safe because goose tracks applied migrations and won't rerun them
	err := cmd.RunMigrations()
	if err != nil {
		panic("Failed to run migrations: " + err.Error())
	}

	// Initialize the test database connections
	initTestDB()
	if initErr != nil {
		panic("Failed to initialize test database: " + initErr.Error())
	}

	// Run the tests
	code := m.Run()

	// Clean up the database connection
	if cleanupFunc != nil {
		cleanupFunc()
	}
	if stopContainer != nil {
		stopContainer()
	}

	// Exit with the test status code
	os.Exit(code)
}

// startTestPostgres launches a postgres container and returns its connection
// string plus a terminate func.
func startTestPostgres() (string, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testpg"),
		postgres.WithUsername("devuser"),
		postgres.WithPassword("devpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return "", nil, err
	}

	uri, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	stop := func() {
		_ = container.Terminate(context.Background())
	}
	return uri, stop, nil
}
