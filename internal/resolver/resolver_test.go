package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/magadhlabs/lmsync/internal/metrics"
	"github.com/magadhlabs/lmsync/internal/model"
	"github.com/magadhlabs/lmsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockDirectoryStore is a mock implementation of DirectoryStore
type MockDirectoryStore struct {
	mock.Mock
}

func (m *MockDirectoryStore) GetClient(ctx context.Context, clientID string) (*model.TenantConfig, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TenantConfig), args.Error(1)
}

func (m *MockDirectoryStore) UpsertClient(ctx context.Context, cfg *model.TenantConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockDirectoryStore) DeleteClient(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *MockDirectoryStore) ListClients(ctx context.Context) ([]*model.TenantConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*model.TenantConfig), args.Error(1)
}

func (m *MockDirectoryStore) WatchClients(ctx context.Context) (<-chan []*model.TenantConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).(<-chan []*model.TenantConfig), args.Error(1)
}

func (m *MockDirectoryStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDirectoryStore) Close() {
	m.Called()
}

func newTestResolver(directory store.DirectoryStore, waitBound time.Duration) *Resolver {
	logger := zap.NewNop()
	cache := store.NewInMemoryCache(10, logger)
	return NewResolver(directory, cache, time.Minute, waitBound, metrics.NewMetrics(), logger)
}

func testConfig(clientID string) *model.TenantConfig {
	return &model.TenantConfig{
		ClientID:    clientID,
		Name:        "City Library",
		RemoteStore: json.RawMessage(`{}`),
		Halls:       []model.Hall{{ID: "h1", Name: "Main", SeatCount: 40}},
	}
}

func TestResolveSuccess(t *testing.T) {
	directory := new(MockDirectoryStore)
	directory.On("GetClient", mock.Anything, "city-library").Return(testConfig("city-library"), nil)

	r := newTestResolver(directory, time.Second)

	cfg, err := r.Resolve(context.Background(), "city-library")
	require.NoError(t, err)
	assert.Equal(t, "city-library", cfg.ClientID)
	assert.Equal(t, "City Library - LMS", cfg.Title())

	current, ok := r.Current()
	assert.True(t, ok)
	assert.Equal(t, cfg, current)

	select {
	case ready := <-r.Ready():
		assert.Equal(t, cfg, ready)
	default:
		t.Fatal("readiness signal not delivered")
	}
}

func TestResolveMissingTenant(t *testing.T) {
	directory := new(MockDirectoryStore)
	r := newTestResolver(directory, time.Second)

	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrMissingTenant)
	directory.AssertNotCalled(t, "GetClient")
}

func TestResolveNotFound(t *testing.T) {
	directory := new(MockDirectoryStore)
	directory.On("GetClient", mock.Anything, "ghost").Return(nil, store.ErrNotFound)

	r := newTestResolver(directory, time.Second)

	_, err := r.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrTenantNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestResolveDirectoryError(t *testing.T) {
	directory := new(MockDirectoryStore)
	directory.On("GetClient", mock.Anything, "city-library").Return(nil, errors.New("connection refused"))

	r := newTestResolver(directory, time.Second)

	_, err := r.Resolve(context.Background(), "city-library")
	assert.ErrorIs(t, err, model.ErrConfigLoad)
}

func TestResolveTimeout(t *testing.T) {
	directory := new(MockDirectoryStore)
	directory.On("GetClient", mock.Anything, "slow").
		Run(func(mock.Arguments) { time.Sleep(300 * time.Millisecond) }).
		Return(testConfig("slow"), nil)

	r := newTestResolver(directory, 30*time.Millisecond)

	start := time.Now()
	_, err := r.Resolve(context.Background(), "slow")
	assert.ErrorIs(t, err, model.ErrResolutionTimeout)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestResolveCachesConfig(t *testing.T) {
	directory := new(MockDirectoryStore)
	directory.On("GetClient", mock.Anything, "city-library").Return(testConfig("city-library"), nil).Once()

	r := newTestResolver(directory, time.Second)

	_, err := r.Resolve(context.Background(), "city-library")
	require.NoError(t, err)

	// Second resolution is served from cache; the directory is not hit again.
	_, err = r.Resolve(context.Background(), "city-library")
	require.NoError(t, err)

	directory.AssertExpectations(t)
}

func TestReadyFiresOncePerProcess(t *testing.T) {
	directory := new(MockDirectoryStore)
	directory.On("GetClient", mock.Anything, "city-library").Return(testConfig("city-library"), nil)

	r := newTestResolver(directory, time.Second)

	_, err := r.Resolve(context.Background(), "city-library")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "city-library")
	require.NoError(t, err)

	<-r.Ready()

	// The channel is closed after the single delivery.
	_, open := <-r.Ready()
	assert.False(t, open)
}

func TestResolveFromQuery(t *testing.T) {
	directory := new(MockDirectoryStore)
	directory.On("GetClient", mock.Anything, "city-library").Return(testConfig("city-library"), nil)

	r := newTestResolver(directory, time.Second)

	values := url.Values{}
	values.Set(QueryParam, "city-library")
	cfg, err := r.ResolveFromQuery(context.Background(), values)
	require.NoError(t, err)
	assert.Equal(t, "city-library", cfg.ClientID)

	_, err = r.ResolveFromQuery(context.Background(), url.Values{})
	assert.ErrorIs(t, err, model.ErrMissingTenant)
}
