package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/magadhlabs/lmsync/internal/config"
	"github.com/magadhlabs/lmsync/internal/handler"
	"github.com/magadhlabs/lmsync/internal/health"
	"github.com/magadhlabs/lmsync/internal/metrics"
	"github.com/magadhlabs/lmsync/internal/model"
	"github.com/magadhlabs/lmsync/internal/resolver"
	"github.com/magadhlabs/lmsync/internal/server"
	"github.com/magadhlabs/lmsync/internal/session"
	"github.com/magadhlabs/lmsync/internal/store"
	"github.com/magadhlabs/lmsync/internal/syncengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubDirectory is a map-backed DirectoryStore for handler tests.
type stubDirectory struct {
	mu      sync.Mutex
	clients map[string]*model.TenantConfig
}

func newStubDirectory(clients ...*model.TenantConfig) *stubDirectory {
	s := &stubDirectory{clients: make(map[string]*model.TenantConfig)}
	for _, c := range clients {
		s.clients[c.ClientID] = c
	}
	return s
}

func (s *stubDirectory) GetClient(ctx context.Context, clientID string) (*model.TenantConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.clients[clientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cfg, nil
}

func (s *stubDirectory) UpsertClient(ctx context.Context, cfg *model.TenantConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[cfg.ClientID] = cfg
	return nil
}

func (s *stubDirectory) DeleteClient(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; !ok {
		return store.ErrNotFound
	}
	delete(s.clients, clientID)
	return nil
}

func (s *stubDirectory) ListClients(ctx context.Context) ([]*model.TenantConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.TenantConfig, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubDirectory) WatchClients(ctx context.Context) (<-chan []*model.TenantConfig, error) {
	ch := make(chan []*model.TenantConfig)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (s *stubDirectory) Ping(ctx context.Context) error { return nil }
func (s *stubDirectory) Close()                         {}

// tenantFixture wires a full tenant daemon against in-memory stores.
type tenantFixture struct {
	router  http.Handler
	remote  *store.MemoryRemoteStore
	mirror  *store.MemoryMirror
	engine  *syncengine.Engine
	session *session.Manager
	res     *resolver.Resolver
}

func newTenantFixture(t *testing.T) *tenantFixture {
	t.Helper()
	logger := zap.NewNop()

	directory := newStubDirectory(&model.TenantConfig{
		ClientID:    "city-library",
		Name:        "City Library",
		Theme:       model.Theme{Primary: "#1a237e", Secondary: "#ffab00"},
		RemoteStore: json.RawMessage(`{}`),
		Halls:       []model.Hall{{ID: "h1", Name: "Main", SeatCount: 40}},
	})

	m := metrics.NewMetrics()
	cache := store.NewInMemoryCache(10, logger)
	res := resolver.NewResolver(directory, cache, time.Minute, time.Second, m, logger)

	remote := store.NewMemoryRemoteStore()
	mirror := store.NewMemoryMirror()
	sess := session.NewManager(logger)
	engine := syncengine.NewEngine(func(json.RawMessage) (store.RemoteStore, error) {
		return remote, nil
	}, mirror, sess, m, logger)
	exporter := syncengine.NewExporter(engine, nil, logger)

	cfg := config.DefaultConfig()
	cfg.RateLimiter.Enabled = false

	hc := health.NewHealthCheck(map[string]health.Pinger{
		"mirror": health.PingerFunc(mirror.Ping),
	}, logger)

	srv := server.NewServer(cfg, hc, logger)
	h := handler.NewHandlers(res, engine, sess, exporter, srv.ErrorHandler(), logger, time.Second)
	srv.SetupTenantRoutes(h)

	return &tenantFixture{
		router:  srv.GetHandler(),
		remote:  remote,
		mirror:  mirror,
		engine:  engine,
		session: sess,
		res:     res,
	}
}

// goOnline resolves the tenant and signs in, like a completed bootstrap.
func (f *tenantFixture) goOnline(t *testing.T) {
	t.Helper()
	cfg, err := f.res.Resolve(context.Background(), "city-library")
	require.NoError(t, err)
	require.True(t, f.engine.Initialize(cfg))
	f.session.SignIn("u1")
}

func (f *tenantFixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestBootstrap(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodGet, "/v1/bootstrap?client=city-library", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ClientID string      `json:"clientId"`
		Title    string      `json:"title"`
		Theme    model.Theme `json:"theme"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "city-library", resp.ClientID)
	assert.Equal(t, "City Library - LMS", resp.Title)
	assert.Equal(t, "#1a237e", resp.Theme.Primary)
}

func TestBootstrapUnknownClient(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodGet, "/v1/bootstrap?client=ghost", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "TENANT_NOT_FOUND", resp.ErrorCode)
	assert.Equal(t, "Client not found: ghost", resp.Message)
}

func TestBootstrapMissingClient(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodGet, "/v1/bootstrap", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_TENANT")
}

func TestCollectionRoundTrip(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodPut, "/v1/collections/settings", `{"openTime":"08:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/collections/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"openTime":"08:00"}`, rec.Body.String())
}

func TestCollectionDefaultValue(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodGet, "/v1/collections/students", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(http.MethodGet, "/v1/collections/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestUnknownCollectionRejected(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodGet, "/v1/collections/books", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/v1/collections/books", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutCollectionRejectsInvalidJSON(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodPut, "/v1/collections/settings", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItemEndpoints(t *testing.T) {
	f := newTenantFixture(t)
	f.goOnline(t)
	ctx := context.Background()

	rec := f.do(http.MethodPut, "/v1/collections/students/items/s1", `{"id":"s1","name":"Asha"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	value, err := f.remote.Get(ctx, "users/u1/students")
	require.NoError(t, err)
	assert.JSONEq(t, `{"s1":{"id":"s1","name":"Asha"}}`, string(value))

	// Mismatched path and body id.
	rec = f.do(http.MethodPut, "/v1/collections/students/items/s2", `{"id":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodDelete, "/v1/collections/students/items/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = f.remote.Get(ctx, "users/u1/students")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionEndpoints(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodGet, "/v1/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthenticated")

	rec = f.do(http.MethodPost, "/v1/session/sign-in", `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/session", "")
	assert.Contains(t, rec.Body.String(), `"userId":"u1"`)

	rec = f.do(http.MethodPost, "/v1/session/sign-out", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/session", "")
	assert.Contains(t, rec.Body.String(), "unauthenticated")
}

func TestSignInRequiresUserID(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodPost, "/v1/session/sign-in", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncEndpoints(t *testing.T) {
	f := newTenantFixture(t)

	// Offline sync is refused.
	rec := f.do(http.MethodPost, "/v1/sync/push", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "REMOTE_UNAVAILABLE")

	f.goOnline(t)
	require.NoError(t, f.mirror.Save(model.CollectionSettings, json.RawMessage(`{"openTime":"08:00"}`)))

	rec = f.do(http.MethodPost, "/v1/sync/push", "")
	require.Equal(t, http.StatusOK, rec.Code)

	value, err := f.remote.Get(context.Background(), "users/u1/settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"openTime":"08:00"}`, string(value))

	rec = f.do(http.MethodPost, "/v1/sync/pull", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBackupExport(t *testing.T) {
	f := newTenantFixture(t)
	require.NoError(t, f.mirror.Save(model.CollectionSettings, json.RawMessage(`{"openTime":"08:00"}`)))

	rec := f.do(http.MethodGet, "/v1/backup/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "library_backup_")

	var backup model.Backup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &backup))
	assert.Equal(t, model.BackupVersion, backup.Version)
	assert.JSONEq(t, `{"openTime":"08:00"}`, string(backup.Collections[model.CollectionSettings]))
}

func TestHealthEndpoints(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mirror":"healthy"`)
}

func TestUnknownEndpoint(t *testing.T) {
	f := newTenantFixture(t)

	rec := f.do(http.MethodGet, "/v1/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
