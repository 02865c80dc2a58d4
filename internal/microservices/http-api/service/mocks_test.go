package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"villagehub/internal/microservices/http-api/models"
)

// MockNotificationRepository mocks repository.NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) CreateWithDeliveries(ctx context.Context, n *models.Notification, adminIDs []string) error {
	args := m.Called(ctx, n, adminIDs)
	return args.Error(0)
}

// MockAdminRepository mocks repository.AdminRepository
type MockAdminRepository struct {
	mock.Mock
}

func (m *MockAdminRepository) FindVerifiedIDs(ctx context.Context, villageKey, excludeID string) ([]string, error) {
	args := m.Called(ctx, villageKey, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockDeliveryRepository mocks repository.DeliveryRepository
type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) ListForAdmin(ctx context.Context, adminID string, limit, offset int) ([]models.AdminNotification, error) {
	args := m.Called(ctx, adminID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AdminNotification), args.Error(1)
}

func (m *MockDeliveryRepository) CountUnread(ctx context.Context, adminID string) (int64, error) {
	args := m.Called(ctx, adminID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeliveryRepository) Stats(ctx context.Context, adminID string) (models.DeliveryStats, error) {
	args := m.Called(ctx, adminID)
	return args.Get(0).(models.DeliveryStats), args.Error(1)
}

func (m *MockDeliveryRepository) Find(ctx context.Context, notificationID, adminID string) (*models.Delivery, error) {
	args := m.Called(ctx, notificationID, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) MarkSeen(ctx context.Context, notificationID, adminID string, at time.Time) (int64, error) {
	args := m.Called(ctx, notificationID, adminID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeliveryRepository) MarkAllSeen(ctx context.Context, adminID string, at time.Time) (int64, error) {
	args := m.Called(ctx, adminID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeliveryRepository) MarkRead(ctx context.Context, notificationID, adminID string, at time.Time) (int64, error) {
	args := m.Called(ctx, notificationID, adminID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeliveryRepository) MarkAllRead(ctx context.Context, adminID string, at time.Time) (int64, error) {
	args := m.Called(ctx, adminID, at)
	return args.Get(0).(int64), args.Error(1)
}

// MockStatsCache mocks repository.StatsCache
type MockStatsCache struct {
	mock.Mock
}

func (m *MockStatsCache) Get(ctx context.Context, adminID string) (models.DeliveryStats, uint64, bool) {
	args := m.Called(ctx, adminID)
	return args.Get(0).(models.DeliveryStats), args.Get(1).(uint64), args.Bool(2)
}

func (m *MockStatsCache) Set(ctx context.Context, adminID string, gen uint64, stats models.DeliveryStats) {
	m.Called(ctx, adminID, gen, stats)
}

func (m *MockStatsCache) Invalidate(ctx context.Context, adminIDs ...string) {
	m.Called(ctx, adminIDs)
}

// MockPublisher mocks Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(n *models.Notification) (string, error) {
	args := m.Called(n)
	return args.String(0), args.Error(1)
}
