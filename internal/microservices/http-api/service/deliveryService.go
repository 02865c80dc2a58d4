package service

import (
	"context"
	"log/slog"
	"time"

	"villagehub/internal/microservices/http-api/models"
	"villagehub/internal/microservices/http-api/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// DeliveryService tracks what each admin has seen and read.
// Marking a delivery that does not exist is a silent no-op.
type DeliveryService interface {
	List(ctx context.Context, adminID string, limit, offset int) ([]models.AdminNotification, error)
	UnreadCount(ctx context.Context, adminID string) (int64, error)
	Stats(ctx context.Context, adminID string) (models.DeliveryStats, error)
	MarkSeen(ctx context.Context, adminID, notificationID string) error
	MarkAllSeen(ctx context.Context, adminID string) error
	MarkRead(ctx context.Context, adminID, notificationID string) error
	MarkAllRead(ctx context.Context, adminID string) error
}

type deliveryService struct {
	repo   repository.DeliveryRepository
	cache  repository.StatsCache
	logger *slog.Logger
	now    func() time.Time
}

func NewDeliveryService(repo repository.DeliveryRepository, cache repository.StatsCache, logger *slog.Logger) DeliveryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &deliveryService{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *deliveryService) List(ctx context.Context, adminID string, limit, offset int) ([]models.AdminNotification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForAdmin(ctx, adminID, limit, offset)
}

func (s *deliveryService) UnreadCount(ctx context.Context, adminID string) (int64, error) {
	if s.cache != nil {
		if stats, _, ok := s.cache.Get(ctx, adminID); ok {
			return stats.Unread, nil
		}
	}
	return s.repo.CountUnread(ctx, adminID)
}

func (s *deliveryService) Stats(ctx context.Context, adminID string) (models.DeliveryStats, error) {
	var gen uint64
	if s.cache != nil {
		cached, g, ok := s.cache.Get(ctx, adminID)
		if ok {
			return cached, nil
		}
		gen = g
	}
	// gen was taken before the read; a mark committed in between moves the admin past it
	stats, err := s.repo.Stats(ctx, adminID)
	if err != nil {
		return stats, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, adminID, gen, stats)
	}
	return stats, nil
}

func (s *deliveryService) MarkSeen(ctx context.Context, adminID, notificationID string) error {
	n, err := s.repo.MarkSeen(ctx, notificationID, adminID, s.now())
	return s.afterMark(ctx, "mark_seen", adminID, n, err)
}

func (s *deliveryService) MarkAllSeen(ctx context.Context, adminID string) error {
	n, err := s.repo.MarkAllSeen(ctx, adminID, s.now())
	return s.afterMark(ctx, "mark_all_seen", adminID, n, err)
}

func (s *deliveryService) MarkRead(ctx context.Context, adminID, notificationID string) error {
	n, err := s.repo.MarkRead(ctx, notificationID, adminID, s.now())
	return s.afterMark(ctx, "mark_read", adminID, n, err)
}

func (s *deliveryService) MarkAllRead(ctx context.Context, adminID string) error {
	n, err := s.repo.MarkAllRead(ctx, adminID, s.now())
	return s.afterMark(ctx, "mark_all_read", adminID, n, err)
}

func (s *deliveryService) afterMark(ctx context.Context, op, adminID string, affected int64, err error) error {
	if err != nil {
		return err
	}
	if affected > 0 && s.cache != nil {
		s.cache.Invalidate(ctx, adminID)
	}
	s.logger.Debug("delivery_updated", "op", op, "admin_id", adminID, "rows", affected)
	return nil
}
