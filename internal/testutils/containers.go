// Package testutils 提供整合測試用的測試容器
//
// 啟動 Redis 與 PostgreSQL 容器，連線方式與正式環境相同
// （publish.NewRedisClient、publish.NewPostgresPool）。
// 需要 Docker；呼叫端應以 testing.Short() 跳過。
package testutils

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/koopa0/system-design/14-realtime-match/internal/publish"
)

// TestEnvironment 封裝測試環境
type TestEnvironment struct {
	RedisClient    *redis.Client
	PostgresPool   *pgxpool.Pool
	RedisContainer tc.Container
	PgContainer    tc.Container
	RedisAddr      string
	PostgresDSN    string
	Logger         *slog.Logger
	ctx            context.Context
}

// SetupTestEnvironment 啟動 Redis 與 PostgreSQL 容器並註冊清理
//
// 使用範例：
//
//	func TestSomething(t *testing.T) {
//	    if testing.Short() {
//	        t.Skip("skipping integration test in short mode")
//	    }
//	    env := testutils.SetupTestEnvironment(t)
//	    // 使用 env.RedisClient 和 env.PostgresPool
//	}
func SetupTestEnvironment(t testing.TB) *TestEnvironment {
	t.Helper()

	env := &TestEnvironment{
		ctx: context.Background(),
		Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		})),
	}

	t.Cleanup(env.Cleanup)

	env.setupRedis(t)
	env.setupPostgreSQL(t)

	return env
}

// setupRedis 啟動 Redis 測試容器
func (env *TestEnvironment) setupRedis(t testing.TB) {
	t.Helper()

	redisContainer, err := tcredis.Run(env.ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	env.RedisContainer = redisContainer

	endpoint, err := redisContainer.Endpoint(env.ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	env.RedisAddr = endpoint

	ctx, cancel := context.WithTimeout(env.ctx, 5*time.Second)
	defer cancel()

	env.RedisClient, err = publish.NewRedisClient(ctx, endpoint, "", 0)
	if err != nil {
		t.Fatalf("failed to connect redis: %v", err)
	}
}

// setupPostgreSQL 啟動 PostgreSQL 測試容器
func (env *TestEnvironment) setupPostgreSQL(t testing.TB) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(env.ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	env.PgContainer = pgContainer

	dsn, err := pgContainer.ConnectionString(env.ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	env.PostgresDSN = dsn

	env.PostgresPool, err = publish.NewPostgresPool(env.ctx, dsn, 5)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
}

// Cleanup 關閉連線並終止容器
func (env *TestEnvironment) Cleanup() {
	ctx := context.Background()

	if env.RedisClient != nil {
		_ = env.RedisClient.Close()
		env.RedisClient = nil
	}

	if env.PostgresPool != nil {
		env.PostgresPool.Close()
		env.PostgresPool = nil
	}

	if env.RedisContainer != nil {
		_ = env.RedisContainer.Terminate(ctx)
		env.RedisContainer = nil
	}

	if env.PgContainer != nil {
		_ = env.PgContainer.Terminate(ctx)
		env.PgContainer = nil
	}
}

// FlushRedis 清空 Redis 資料
func (env *TestEnvironment) FlushRedis(t testing.TB) {
	t.Helper()

	if err := env.RedisClient.FlushDB(env.ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}

// TruncateResults 清空 match_results
func (env *TestEnvironment) TruncateResults(t testing.TB) {
	t.Helper()

	if _, err := env.PostgresPool.Exec(env.ctx, "TRUNCATE TABLE match_results"); err != nil {
		t.Fatalf("failed to truncate match_results: %v", err)
	}
}
