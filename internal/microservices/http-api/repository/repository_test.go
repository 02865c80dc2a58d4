package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"villagehub/internal/microservices/http-api/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Admin{}, &models.Notification{}, &models.Delivery{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func seedAdmins(t *testing.T, db *gorm.DB, admins ...models.Admin) {
	t.Helper()
	require.NoError(t, db.Create(&admins).Error)
}

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func createNotification(t *testing.T, repo NotificationRepository, id string, at time.Time, adminIDs ...string) *models.Notification {
	t.Helper()
	n := &models.Notification{
		ID:         id,
		VillageKey: "pha-suk-001",
		Type:       "house_updated",
		Category:   "house_management",
		Title:      "House " + id,
		Priority:   "medium",
		CreatedAt:  at,
	}
	require.NoError(t, repo.CreateWithDeliveries(context.Background(), n, adminIDs))
	return n
}

func TestAdminRepository_FindVerifiedIDs(t *testing.T) {
	db := newTestDB(t)
	seedAdmins(t, db,
		models.Admin{ID: "a1", VillageKey: "pha-suk-001", Status: models.AdminStatusVerified},
		models.Admin{ID: "a2", VillageKey: "pha-suk-001", Status: models.AdminStatusVerified},
		models.Admin{ID: "a3", VillageKey: "pha-suk-001", Status: models.AdminStatusVerified},
		models.Admin{ID: "a4", VillageKey: "pha-suk-001", Status: models.AdminStatusPending},
		models.Admin{ID: "b1", VillageKey: "other-village", Status: models.AdminStatusVerified},
	)
	repo := NewAdminRepository(db)
	ctx := context.Background()

	ids, err := repo.FindVerifiedIDs(ctx, "pha-suk-001", "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a3"}, ids)

	ids, err = repo.FindVerifiedIDs(ctx, "pha-suk-001", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids)

	ids, err = repo.FindVerifiedIDs(ctx, "nobody-lives-here", "")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNotificationRepository_CreateWithDeliveries(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db)

	n := &models.Notification{
		VillageKey: "pha-suk-001",
		Type:       "resident_pending",
		Category:   "user_approval",
		Title:      "New resident",
		Priority:   "high",
		CreatedAt:  baseTime,
	}
	require.NoError(t, repo.CreateWithDeliveries(context.Background(), n, []string{"a2", "a3"}))
	require.NotEmpty(t, n.ID, "id is assigned on create")

	var deliveries []models.Delivery
	require.NoError(t, db.Where("notification_id = ?", n.ID).Order("admin_id").Find(&deliveries).Error)
	require.Len(t, deliveries, 2)
	for i, adminID := range []string{"a2", "a3"} {
		assert.Equal(t, adminID, deliveries[i].AdminID)
		assert.Nil(t, deliveries[i].SeenAt)
		assert.Nil(t, deliveries[i].ReadAt)
	}

	var found models.Notification
	require.NoError(t, db.First(&found, "id = ?", n.ID).Error)
	assert.Equal(t, "New resident", found.Title)
}

func TestNotificationRepository_ZeroRecipients(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db)

	n := createNotification(t, repo, "n-solo", baseTime)

	var count int64
	require.NoError(t, db.Model(&models.Delivery{}).Where("notification_id = ?", n.ID).Count(&count).Error)
	assert.Zero(t, count)
	var found models.Notification
	assert.NoError(t, db.First(&found, "id = ?", n.ID).Error)
}

func TestNotificationRepository_FanOutIsAtomic(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db)

	// the duplicate admin id violates the delivery primary key, so nothing may persist
	n := &models.Notification{
		ID:         "n-atomic",
		VillageKey: "pha-suk-001",
		Type:       "house_created",
		Category:   "house_management",
		Title:      "House created",
		Priority:   "medium",
		CreatedAt:  baseTime,
	}
	err := repo.CreateWithDeliveries(context.Background(), n, []string{"a2", "a2"})
	require.Error(t, err)

	var notifications, deliveries int64
	db.Model(&models.Notification{}).Count(&notifications)
	db.Model(&models.Delivery{}).Count(&deliveries)
	assert.Zero(t, notifications)
	assert.Zero(t, deliveries)
}

func TestDeliveryRepository_ListOrderAndPagination(t *testing.T) {
	db := newTestDB(t)
	notifications := NewNotificationRepository(db)
	repo := NewDeliveryRepository(db)
	ctx := context.Background()

	createNotification(t, notifications, "n-old", baseTime, "a2")
	createNotification(t, notifications, "n-b", baseTime.Add(time.Minute), "a2")
	createNotification(t, notifications, "n-a", baseTime.Add(time.Minute), "a2")
	createNotification(t, notifications, "n-other", baseTime.Add(time.Hour), "a3")

	list, err := repo.ListForAdmin(ctx, "a2", 10, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"n-a", "n-b", "n-old"}, ids)

	page, err := repo.ListForAdmin(ctx, "a2", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "n-b", page[0].ID)

	empty, err := repo.ListForAdmin(ctx, "a2", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeliveryRepository_MarkSeenIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	notifications := NewNotificationRepository(db)
	repo := NewDeliveryRepository(db)
	ctx := context.Background()

	createNotification(t, notifications, "n-1", baseTime, "a2")

	first := baseTime.Add(time.Minute)
	rows, err := repo.MarkSeen(ctx, "n-1", "a2", first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.MarkSeen(ctx, "n-1", "a2", first.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, rows)

	d, err := repo.Find(ctx, "n-1", "a2")
	require.NoError(t, err)
	require.NotNil(t, d.SeenAt)
	assert.True(t, first.Equal(*d.SeenAt), "first seen_at wins, got %v", d.SeenAt)
	assert.Nil(t, d.ReadAt)
}

func TestDeliveryRepository_MarkMissingDeliveryIsNoop(t *testing.T) {
	db := newTestDB(t)
	repo := NewDeliveryRepository(db)
	ctx := context.Background()

	rows, err := repo.MarkSeen(ctx, "missing", "a2", baseTime)
	require.NoError(t, err)
	assert.Zero(t, rows)

	rows, err = repo.MarkRead(ctx, "missing", "a2", baseTime)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestDeliveryRepository_ReadStateAndStats(t *testing.T) {
	db := newTestDB(t)
	notifications := NewNotificationRepository(db)
	repo := NewDeliveryRepository(db)
	ctx := context.Background()

	createNotification(t, notifications, "n-1", baseTime, "a2", "a3")
	createNotification(t, notifications, "n-2", baseTime.Add(time.Minute), "a2")
	createNotification(t, notifications, "n-3", baseTime.Add(2*time.Minute), "a2")

	stats, err := repo.Stats(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStats{Total: 3, Unread: 3, Unseen: 3}, stats)

	_, err = repo.MarkSeen(ctx, "n-1", "a2", baseTime)
	require.NoError(t, err)
	rows, err := repo.MarkRead(ctx, "n-2", "a2", baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	unread, err := repo.CountUnread(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	stats, err = repo.Stats(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStats{Total: 3, Unread: 2, Unseen: 2}, stats)

	rows, err = repo.MarkAllRead(ctx, "a2", baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	rows, err = repo.MarkAllSeen(ctx, "a2", baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	stats, err = repo.Stats(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStats{Total: 3, Unread: 0, Unseen: 0}, stats)

	// other admins are untouched
	stats, err = repo.Stats(ctx, "a3")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStats{Total: 1, Unread: 1, Unseen: 1}, stats)

	list, err := repo.ListForAdmin(ctx, "a2", 10, 0)
	require.NoError(t, err)
	for _, n := range list {
		assert.NotNil(t, n.ReadAt, n.ID)
		assert.NotNil(t, n.SeenAt, n.ID)
	}
}

func TestDeliveryRepository_StatsForUnknownAdmin(t *testing.T) {
	db := newTestDB(t)
	repo := NewDeliveryRepository(db)

	stats, err := repo.Stats(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStats{}, stats)
}

func TestRedisStatsCache_NilClientIsNoop(t *testing.T) {
	cache := NewRedisStatsCache(nil, time.Minute, nil)
	ctx := context.Background()

	cache.Set(ctx, "a1", 0, models.DeliveryStats{Total: 1})
	_, _, ok := cache.Get(ctx, "a1")
	assert.False(t, ok)
	cache.Invalidate(ctx, "a1")
	assert.NoError(t, cache.Close())

	var nilCache *RedisStatsCache
	_, _, ok = nilCache.Get(ctx, "a1")
	assert.False(t, ok)
}

func TestStatsKeys(t *testing.T) {
	assert.Equal(t, "notifications:stats:admin:a1:0", statsKey("a1", 0))
	assert.Equal(t, "notifications:stats:admin:a1:7", statsKey("a1", 7))
	assert.Equal(t, "notifications:stats:gen:a1", genKey("a1"))
}

// Runs against a disposable redis when REDIS_TEST_URL is set.
func TestRedisStatsCache_LateSetAfterInvalidateIsIgnored(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	cache := NewRedisStatsCache(client, time.Minute, nil)
	defer cache.Close()

	ctx := context.Background()
	adminID := "a-" + uuid.NewString()
	t.Cleanup(func() {
		client.Del(context.Background(), genKey(adminID), statsKey(adminID, 0), statsKey(adminID, 1), statsKey(adminID, 2))
	})

	_, gen, ok := cache.Get(ctx, adminID)
	require.False(t, ok)

	// a mark commits and invalidates between the database read and the cache write
	cache.Invalidate(ctx, adminID)
	cache.Set(ctx, adminID, gen, models.DeliveryStats{Total: 1, Unread: 1})

	_, newGen, ok := cache.Get(ctx, adminID)
	assert.False(t, ok, "stale entry must not be visible")
	assert.Equal(t, gen+1, newGen)

	fresh := models.DeliveryStats{Total: 1}
	cache.Set(ctx, adminID, newGen, fresh)
	got, _, ok := cache.Get(ctx, adminID)
	require.True(t, ok)
	assert.Equal(t, fresh, got)

	cache.Invalidate(ctx, adminID)
	_, _, ok = cache.Get(ctx, adminID)
	assert.False(t, ok)
}
