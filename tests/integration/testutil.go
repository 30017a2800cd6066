//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/talktivity/voicebridge/internal/api"
	"github.com/talktivity/voicebridge/internal/auth"
	"github.com/talktivity/voicebridge/internal/config"
	"github.com/talktivity/voicebridge/internal/quota"
	"github.com/talktivity/voicebridge/internal/report"
	"github.com/talktivity/voicebridge/internal/transcript"
)

const testServiceSecret = "test-service-secret-32-chars-long!!"

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Validator   *auth.TokenValidator
	QuotaStore  quota.Store
	Handoff     *transcript.Store
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "voicebridge_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/voicebridge_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Setup services
	limits := config.LimitsConfig{
		CallLifetimeSeconds:   300,
		PracticeDailySeconds:  300,
		RoleplayBasicSeconds:  300,
		RoleplayProSeconds:    600,
		SpeakingGoalSeconds:   300,
		TranscriptWaitTimeout: 2 * time.Second,
	}

	quotaStore := quota.NewStore(pool)
	quotaSvc := quota.NewService(quotaStore, limits)
	quotaHandler := quota.NewHandler(quotaSvc)

	handoff := transcript.NewStore()
	convRepo := transcript.NewPostgresRepository(pool)
	reportSvc := report.NewService(handoff, convRepo, report.NewPostgresRepository(pool), limits.TranscriptWaitTimeout)
	reportHandler := report.NewHandler(reportSvc)

	validator := auth.NewTokenValidator(testServiceSecret)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		GetQuotaStatus: quotaHandler.GetStatus,
		GenerateReport: reportHandler.Generate,
		LatestReport:   reportHandler.Latest,
		AuthMiddleware: auth.Middleware(validator),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		Validator:   validator,
		QuotaStore:  quotaStore,
		Handoff:     handoff,
	}

	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

// TokenFor signs a service token for the given user, the way the Node API does.
func TokenFor(t *testing.T, env *TestEnv, userID int64) string {
	t.Helper()
	token, err := env.Validator.Sign(userID, time.Hour)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

// GrantSubscription inserts an active subscription row.
func GrantSubscription(t *testing.T, env *TestEnv, userID int64, plan string) {
	t.Helper()
	_, err := env.Pool.Exec(context.Background(), `
		INSERT INTO subscriptions (user_id, plan_type, status, start_date, end_date)
		VALUES ($1, $2, 'active', NOW() - INTERVAL '1 day', NOW() + INTERVAL '30 days')`,
		userID, plan)
	if err != nil {
		t.Fatalf("granting subscription: %v", err)
	}
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
