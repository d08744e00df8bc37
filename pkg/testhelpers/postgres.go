package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/database"
	"github.com/keystone-uw/underwriting-engine/pkg/retry"
)

// PostgresImage is the PostgreSQL image used for integration tests.
const PostgresImage = "postgres:17-alpine"

const (
	ownerUser = "underwriting"
	ownerPass = "test_password"
	dbName    = "underwriting_test"

	// appUser does not own the uw_* tables, so row-level security applies to it.
	appUser = "uw_app"
	appPass = "app_password"
)

// EngineDB is a migrated database shared by every integration test in a package.
// DB connects as a non-owner role so tenant isolation is enforced exactly as in
// production; OwnerConnStr bypasses it for fixtures and assertions.
type EngineDB struct {
	DB           *database.DB
	ConnStr      string
	OwnerConnStr string
	Container    testcontainers.Container
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error
)

// GetEngineDB returns the shared engine database, starting it on first use.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = setupEngineDB(context.Background())
	})

	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to setup engine database: %v", sharedEngineDBErr)
	}

	return sharedEngineDB
}

func setupEngineDB(ctx context.Context) (*EngineDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        PostgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       dbName,
				"POSTGRES_USER":     ownerUser,
				"POSTGRES_PASSWORD": ownerPass,
			},
			// Readiness is logged once by the init run and again by the real server.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get postgres endpoint: %w", err)
	}
	ownerConnStr := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", ownerUser, ownerPass, endpoint, dbName)
	appConnStr := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", appUser, appPass, endpoint, dbName)

	owner, err := connect(ctx, ownerConnStr)
	if err != nil {
		return nil, err
	}
	defer owner.Close()

	sqlDB := stdlib.OpenDBFromPool(owner.Pool)
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	grants := []string{
		fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD '%s'", appUser, appPass),
		fmt.Sprintf("GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO %s", appUser),
	}
	for _, stmt := range grants {
		if _, err := owner.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create application role: %w", err)
		}
	}

	db, err := connect(ctx, appConnStr)
	if err != nil {
		return nil, err
	}

	return &EngineDB{
		DB:           db,
		ConnStr:      appConnStr,
		OwnerConnStr: ownerConnStr,
		Container:    container,
	}, nil
}

// connect retries until the freshly started server accepts connections.
func connect(ctx context.Context, connStr string) (*database.DB, error) {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = 10
	cfg.InitialDelay = 250 * time.Millisecond

	db, err := retry.DoWithResult(ctx, cfg, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{URL: connStr, MaxConnections: 5})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// CreateTestContext returns a context scoped to a fresh tenant along with a
// cleanup function that releases the connection.
func CreateTestContext(t *testing.T, engineDB *EngineDB) (context.Context, uuid.UUID, func()) {
	t.Helper()

	tenantID := uuid.New()
	scope, err := engineDB.DB.WithTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Failed to create tenant scope: %v", err)
	}

	return database.SetTenantScope(context.Background(), scope), tenantID, scope.Close
}
