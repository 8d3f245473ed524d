package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/devicehub/devicehub/internal/domain"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// MockAuditLogRepository is a mock implementation of AuditLogRepository
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Insert(ctx context.Context, entry domain.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepository) List(ctx context.Context, filter domain.AuditLogFilter, limit, offset int) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}

// tableRepo behaves like the admin_logs table: it filters, orders and windows in the store
type tableRepo struct {
	mu   sync.Mutex
	rows []domain.AuditLogEntry
}

func (r *tableRepo) Insert(_ context.Context, entry domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, entry)
	return nil
}

func (r *tableRepo) List(_ context.Context, filter domain.AuditLogFilter, limit, offset int) ([]domain.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := domain.FilterEntries(r.rows, filter)
	domain.SortNewestFirst(out)
	return domain.Paginate(out, limit, offset), nil
}

// memFallback is an in-memory FallbackStore with injectable failures
type memFallback struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
	loadErr error
	saveErr error
}

func (f *memFallback) Load(context.Context) ([]domain.AuditLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]domain.AuditLogEntry{}, f.entries...), nil
}

func (f *memFallback) Save(_ context.Context, entries []domain.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.entries = append([]domain.AuditLogEntry{}, entries...)
	return nil
}

type stubResolver struct {
	ip  string
	err error
}

func (r stubResolver) PublicIP(context.Context) (string, error) { return r.ip, r.err }

func tableExists(exists bool) func(context.Context) (bool, error) {
	return func(context.Context) (bool, error) { return exists, nil }
}

var errBoom = errors.New("boom")

func entry(action, by, ts string) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		Action:      action,
		Details:     json.RawMessage(`{}`),
		PerformedBy: by,
		Timestamp:   ts,
	}
}

// MockDeviceRepository is a mock implementation of DeviceRepository
type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) List(ctx context.Context) ([]*domain.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Device), args.Error(1)
}

func (m *MockDeviceRepository) FindByID(ctx context.Context, id string) (*domain.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Device), args.Error(1)
}

func (m *MockDeviceRepository) UpdateStatus(ctx context.Context, id string, status domain.DeviceStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDeviceRepository) MarkAllOffline(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockReadingRepository is a mock implementation of ReadingRepository
type MockReadingRepository struct {
	mock.Mock
}

func (m *MockReadingRepository) Append(ctx context.Context, reading *domain.Reading) error {
	args := m.Called(ctx, reading)
	return args.Error(0)
}

func (m *MockReadingRepository) ListSince(ctx context.Context, dataType string, since time.Time) ([]*domain.Reading, error) {
	args := m.Called(ctx, dataType, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Reading), args.Error(1)
}

func (m *MockReadingRepository) ListDeviceSince(ctx context.Context, deviceID, dataType string, since time.Time) ([]*domain.Reading, error) {
	args := m.Called(ctx, deviceID, dataType, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Reading), args.Error(1)
}

// recordingAudit captures recorded entries
type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
}

func (a *recordingAudit) Record(_ context.Context, e domain.AuditLogEntry) domain.RecordOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return domain.RecordOutcome{Store: domain.StoreRemote}
}

// MockChatProvider is a mock implementation of ChatCompletionProvider
type MockChatProvider struct {
	mock.Mock
}

func (m *MockChatProvider) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *MockChatProvider) Provider() string { return "mock" }
