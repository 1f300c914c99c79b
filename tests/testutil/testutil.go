package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tailorhub/tailorhub-api/models"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set.
// Use this in suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}
}

// NewTestDB opens a migrated in-memory SQLite database. A single connection
// keeps every query on the same in-memory database and serializes
// transactions the way row locks would.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

var seq atomic.Uint64

func next() uint64 {
	return seq.Add(1)
}

// CreateCustomer inserts a customer
func CreateCustomer(t *testing.T, db *gorm.DB, name string) *models.Customer {
	t.Helper()

	customer := &models.Customer{
		FullName: name,
		Email:    fmt.Sprintf("customer%d@example.com", next()),
		Phone:    "08030000000",
		Address:  "12 Allen Avenue, Ikeja",
	}
	mustCreate(t, db, customer)
	return customer
}

// CreateTailor inserts a tailor, verified or not
func CreateTailor(t *testing.T, db *gorm.DB, shopName string, verified bool) *models.Tailor {
	t.Helper()

	tailor := &models.Tailor{
		ShopName:  shopName,
		OwnerName: "Owner of " + shopName,
		Email:     fmt.Sprintf("tailor%d@example.com", next()),
		Area:      "Lekki",
	}
	mustCreate(t, db, tailor)
	if verified {
		now := time.Now()
		if err := db.Model(tailor).Updates(map[string]interface{}{"is_verified": true, "verified_at": now}).Error; err != nil {
			t.Fatalf("Failed to verify tailor: %v", err)
		}
		tailor.IsVerified = true
		tailor.VerifiedAt = &now
	}
	return tailor
}

// CreateAdmin inserts an active admin with role
func CreateAdmin(t *testing.T, db *gorm.DB, username string, role models.Role) *models.Admin {
	t.Helper()

	admin := &models.Admin{
		Username: username,
		Email:    fmt.Sprintf("%s%d@example.com", username, next()),
		Role:     role,
		IsActive: true,
	}
	mustCreate(t, db, admin)
	return admin
}

// CreateOrder inserts an order in status for customer, optionally assigned
func CreateOrder(t *testing.T, db *gorm.DB, customerID uint, tailorID *uint, price int64, status models.OrderStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		CustomerID:     customerID,
		TailorID:       tailorID,
		ServiceType:    "Custom Tailoring",
		GarmentType:    "Agbada",
		Quantity:       1,
		EstimatedPrice: price,
		Status:         status,
	}
	mustCreate(t, db, order)
	return order
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("Failed to create %T: %v", value, err)
	}
}
