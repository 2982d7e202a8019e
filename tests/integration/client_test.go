package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/opswatch/threatstack-client/internal/testutil"
	"github.com/opswatch/threatstack-client/pkg/client"
	"github.com/opswatch/threatstack-client/pkg/hawk"
	"github.com/opswatch/threatstack-client/pkg/ratelimit"
	"github.com/opswatch/threatstack-client/pkg/sink"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// setupMySQL creates a MySQL container and returns an open handle on it.
func setupMySQL(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "integration",
			"MYSQL_DATABASE":      "auditlogs",
		},
		// The init phase logs this once before restarting; wait for the
		// second occurrence so the server is actually serving.
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(3 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start MySQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("root:integration@tcp(%s:%s)/auditlogs?parseTime=true", host, port.Port())
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	// The log line can race the listener by a moment.
	for i := 0; i < 30; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to MySQL: %v", err)
	}

	cleanup := func() {
		db.Close()
		container.Terminate(ctx)
	}

	return db, cleanup
}

func testCredentials() hawk.Credentials {
	return hawk.Credentials{
		ID:        "integration-id",
		Key:       "integration-key",
		Algorithm: "sha256",
	}
}

// newTestClient builds a client pointed at the mock server with the shared
// Redis state attached.
func newTestClient(t *testing.T, mock *testutil.MockAPI, rdb *redis.Client, cacheTTL time.Duration) *client.Client {
	t.Helper()

	c, err := client.New(client.Config{
		BaseURL:     mock.URL(),
		Credentials: testCredentials(),
		OrgID:       "org-integration",
		Redis:       rdb,
		CacheTTL:    cacheTTL,
		Retry:       client.RetryConfig{MaxAttempts: 2, Delay: 50 * time.Millisecond},
		Timeout:     10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

// TestCachedResponseSkipsSecondRequest verifies the full GET flow: rate
// limit check, cache miss, signed request, cache store, then a cache hit
// that never reaches the server.
func TestCachedResponseSkipsSecondRequest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/v2/agents", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"agents":[{"id":"agent-1"}],"token":null}`,
	})

	c := newTestClient(t, mock, rdb, time.Minute)
	ctx := context.Background()

	raw1, err := c.Get(ctx, "/v2/agents", nil)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("Requests after first call = %d, want 1", mock.RequestCount())
	}

	raw2, err := c.Get(ctx, "/v2/agents", nil)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("Requests after second call = %d, want 1 (cache hit)", mock.RequestCount())
	}
	if string(raw1) != string(raw2) {
		t.Errorf("Cached body %s differs from original %s", raw2, raw1)
	}

	// The one request that did go out must carry a Hawk signature.
	headers := mock.AuthHeaders()
	if len(headers) != 1 || len(headers[0]) < 5 || headers[0][:5] != "Hawk " {
		t.Errorf("AuthHeaders = %v, want one Hawk header", headers)
	}
}

// TestSharedRateLimitBlocksRequest verifies that a block window opened by
// another process (pre-seeded in Redis) stops requests before they leave.
func TestSharedRateLimitBlocksRequest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()

	ctx := context.Background()
	now := time.Now()
	rdb.Set(ctx, ratelimit.RedisKeyBlockedUntil, now.Add(time.Minute).Unix(), time.Minute)
	rdb.Set(ctx, ratelimit.RedisKeyLastUpdate, now.Unix(), time.Minute)

	c := newTestClient(t, mock, rdb, 0)

	if _, err := c.Get(ctx, "/v2/agents", nil); err == nil {
		t.Error("Expected request to be blocked by the shared window")
	}
	if mock.RequestCount() != 0 {
		t.Errorf("Requests = %d, want 0 (blocked before dispatch)", mock.RequestCount())
	}
}

// Test429OpensSharedWindow verifies a 429 response records its Retry-After
// window in Redis so sibling processes back off too.
func Test429OpensSharedWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/v2/auditlogs", testutil.MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       "Too Many Requests",
		Headers: map[string]string{
			"Content-Type": "text/plain",
			"Retry-After":  "30",
		},
	})

	c := newTestClient(t, mock, rdb, 0)
	ctx := context.Background()

	if _, err := c.Get(ctx, "/v2/auditlogs", nil); err == nil {
		t.Fatal("Expected the 429 run to fail")
	}

	tracker := ratelimit.NewTracker(rdb, zerolog.Nop())
	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest failed: %v", err)
	}
	if allowed {
		t.Error("Expected the shared window to be open after a 429")
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	remaining := time.Until(state.BlockedUntil)
	if remaining <= 0 || remaining > 31*time.Second {
		t.Errorf("BlockedUntil %v from now, want within Retry-After of 30s", remaining)
	}
}

// TestMySQLSinkWritesAreIdempotent verifies per-organization provisioning
// and that re-writing the same page does not duplicate rows.
func TestMySQLSinkWritesAreIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupMySQL(t)
	defer cleanup()

	s := sink.NewMySQL(db)
	ctx := context.Background()

	page := []json.RawMessage{
		json.RawMessage(`{"id":"evt-1","organizationId":"orga","action":"login"}`),
		json.RawMessage(`{"id":"evt-2","organizationId":"orga","action":"logout"}`),
		json.RawMessage(`{"id":"evt-3","organizationId":"orgb","action":"login"}`),
		json.RawMessage(`{"organizationId":"orgb","action":"no-id-record"}`),
	}

	if err := s.Write(ctx, page); err != nil {
		t.Fatalf("First write failed: %v", err)
	}

	countRows := func(table string) int {
		t.Helper()
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			t.Fatalf("Count %s failed: %v", table, err)
		}
		return n
	}

	if got := countRows("audit_log_orga"); got != 2 {
		t.Errorf("audit_log_orga rows = %d, want 2", got)
	}
	if got := countRows("audit_log_orgb"); got != 2 {
		t.Errorf("audit_log_orgb rows = %d, want 2", got)
	}

	// Same page again: id-keyed upserts, same counts. The id-less record
	// hashes to the same fallback id both times.
	if err := s.Write(ctx, page); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}
	if got := countRows("audit_log_orga"); got != 2 {
		t.Errorf("audit_log_orga rows after rewrite = %d, want 2", got)
	}
	if got := countRows("audit_log_orgb"); got != 2 {
		t.Errorf("audit_log_orgb rows after rewrite = %d, want 2", got)
	}
}
