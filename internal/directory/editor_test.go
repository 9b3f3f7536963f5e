package directory

import (
	"context"
	"testing"
	"time"

	"github.com/magadhlabs/lmsync/internal/metrics"
	"github.com/magadhlabs/lmsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockDirectoryStore is a mock implementation of store.DirectoryStore
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

func newTestEditor(store *MockDirectoryStore) *Editor {
	return NewEditor(store, metrics.NewMetrics(), zap.NewNop())
}

func TestUpsertNormalizesAndDefaults(t *testing.T) {
	ms := new(MockDirectoryStore)
	ms.On("UpsertClient", mock.Anything, mock.Anything).Return(nil)

	editor := newTestEditor(ms)

	cfg := &model.TenantConfig{
		ClientID: "  City Library ",
		Name:     "City Library",
		Halls:    []model.Hall{{Name: "Main Hall", SeatCount: 40}},
	}
	require.NoError(t, editor.Upsert(context.Background(), cfg))

	assert.Equal(t, "city-library", cfg.ClientID)
	assert.NotEmpty(t, cfg.Halls[0].ID)
	assert.False(t, cfg.CreatedAt.IsZero())

	ms.AssertExpectations(t)
}

func TestUpsertKeepsExistingHallIDsAndCreatedAt(t *testing.T) {
	ms := new(MockDirectoryStore)
	ms.On("UpsertClient", mock.Anything, mock.Anything).Return(nil)

	editor := newTestEditor(ms)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := &model.TenantConfig{
		ClientID:  "city-library",
		Halls:     []model.Hall{{ID: "h1", Name: "Main Hall", SeatCount: 40}},
		CreatedAt: created,
	}
	require.NoError(t, editor.Upsert(context.Background(), cfg))

	assert.Equal(t, "h1", cfg.Halls[0].ID)
	assert.Equal(t, created, cfg.CreatedAt)
}

func TestUpsertRejectsInvalidConfig(t *testing.T) {
	ms := new(MockDirectoryStore)
	editor := newTestEditor(ms)

	err := editor.Upsert(context.Background(), &model.TenantConfig{ClientID: "c"})
	assert.ErrorIs(t, err, model.ErrConfigParse)
	ms.AssertNotCalled(t, "UpsertClient")
}

func TestDeleteNormalizesKey(t *testing.T) {
	ms := new(MockDirectoryStore)
	ms.On("DeleteClient", mock.Anything, "city-library").Return(nil)

	editor := newTestEditor(ms)
	require.NoError(t, editor.Delete(context.Background(), "  City Library "))

	ms.AssertExpectations(t)
}

func TestDeleteRejectsEmptyKey(t *testing.T) {
	ms := new(MockDirectoryStore)
	editor := newTestEditor(ms)

	err := editor.Delete(context.Background(), "   ")
	assert.ErrorIs(t, err, model.ErrConfigParse)
	ms.AssertNotCalled(t, "DeleteClient")
}

func TestListPassesThrough(t *testing.T) {
	ms := new(MockDirectoryStore)
	want := []*model.TenantConfig{{ClientID: "a"}, {ClientID: "b"}}
	ms.On("ListClients", mock.Anything).Return(want, nil)

	editor := newTestEditor(ms)
	got, err := editor.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
