package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/tailorhub/tailorhub-api/models"
	"github.com/tailorhub/tailorhub-api/tests/testutil"
)

var (
	superAdminActor = models.Actor{ID: 1, Role: models.RoleSuperAdmin}
	adminActor      = models.Actor{ID: 2, Role: models.RoleAdmin}
	moderatorActor  = models.Actor{ID: 3, Role: models.RoleModerator}
)

type fixture struct {
	db       *gorm.DB
	notifier *MockNotifier
	audit    *GormAuditLog
	deps     Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	notifier := NewMockNotifier()
	audit := NewGormAuditLog(db)
	return &fixture{
		db:       db,
		notifier: notifier,
		audit:    audit,
		deps: Dependencies{
			DB:            db,
			Audit:         audit,
			Notifier:      notifier,
			NotifyTimeout: time.Second,
			Logger:        zaptest.NewLogger(t),
		},
	}
}

func (f *fixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.ActivityLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}

func (f *fixture) reloadOrder(t *testing.T, id uint) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.db.First(&order, id).Error)
	return order
}

func uintPtr(v uint) *uint {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

func statusPtr(s models.OrderStatus) *models.OrderStatus {
	return &s
}
