package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tailorhub/tailorhub-api/models"
)

// Audit actions
const (
	ActionOrderAdvanced    = "order.advanced"
	ActionOrderCancelled   = "order.cancelled"
	ActionOrderOverridden  = "order.overridden"
	ActionOrderAssigned    = "order.assigned"
	ActionEscrowCaptured   = "escrow.captured"
	ActionEscrowHeld       = "escrow.held"
	ActionEscrowOnHold     = "escrow.on_hold"
	ActionEscrowReleased   = "escrow.released"
	ActionEscrowRefunded   = "escrow.refunded"
	ActionTailorVerified   = "tailor.verified"
	ActionTailorUnverified = "tailor.unverified"
	ActionAccountBlocked   = "account.blocked"
	ActionAccountUnblocked = "account.unblocked"
	ActionAdminToggled     = "admin.status_toggled"
	ActionAdminDeleted     = "admin.deleted"
	ActionMessageUpdated   = "message.status_changed"
	ActionMessageReplied   = "message.replied"
)

// AuditEntry is one activity to append to the log
type AuditEntry struct {
	Actor       models.Actor
	Action      string
	TargetType  string
	TargetID    uint
	Description string
	Metadata    map[string]interface{}
}

// AuditLog is an append-only record of state changes
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
	Recent(ctx context.Context, limit int) ([]models.ActivityLog, error)
}

// systemActor signs entries that no authenticated caller triggered, such as
// gateway webhooks.
var systemActor = models.Actor{ID: 0, Role: models.RoleSuperAdmin}

// GormAuditLog stores entries in the activity_logs table
type GormAuditLog struct {
	db *gorm.DB
}

// NewGormAuditLog creates an audit log on db
func NewGormAuditLog(db *gorm.DB) *GormAuditLog {
	return &GormAuditLog{db: db}
}

// Record appends entry
func (a *GormAuditLog) Record(ctx context.Context, entry AuditEntry) error {
	row := models.ActivityLog{
		ActorID:     entry.Actor.ID,
		ActorRole:   entry.Actor.Role,
		Action:      entry.Action,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		Description: entry.Description,
	}
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(raw)
	}
	return a.db.WithContext(ctx).Create(&row).Error
}

// Recent returns the newest entries first
func (a *GormAuditLog) Recent(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	var logs []models.ActivityLog
	err := a.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// mongoActivity is the document shape of an audit entry
type mongoActivity struct {
	ActorID     uint                   `bson:"actor_id"`
	ActorRole   string                 `bson:"actor_role"`
	Action      string                 `bson:"action"`
	TargetType  string                 `bson:"target_type"`
	TargetID    uint                   `bson:"target_id"`
	Description string                 `bson:"description"`
	Metadata    map[string]interface{} `bson:"metadata,omitempty"`
	CreatedAt   time.Time              `bson:"created_at"`
}

// MongoAuditLog stores entries in a MongoDB collection
type MongoAuditLog struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoAuditLog connects to uri and uses database.collection
func NewMongoAuditLog(ctx context.Context, uri, database, collection string) (*MongoAuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoAuditLog{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// Close disconnects the client
func (a *MongoAuditLog) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// Record appends entry
func (a *MongoAuditLog) Record(ctx context.Context, entry AuditEntry) error {
	_, err := a.collection.InsertOne(ctx, mongoActivity{
		ActorID:     entry.Actor.ID,
		ActorRole:   string(entry.Actor.Role),
		Action:      entry.Action,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		Description: entry.Description,
		Metadata:    entry.Metadata,
		CreatedAt:   time.Now().UTC(),
	})
	return err
}

// Recent returns the newest entries first
func (a *MongoAuditLog) Recent(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoActivity
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	logs := make([]models.ActivityLog, 0, len(docs))
	for _, d := range docs {
		entry := models.ActivityLog{
			ActorID:     d.ActorID,
			ActorRole:   models.Role(d.ActorRole),
			Action:      d.Action,
			TargetType:  d.TargetType,
			TargetID:    d.TargetID,
			Description: d.Description,
			CreatedAt:   d.CreatedAt,
		}
		if len(d.Metadata) > 0 {
			if raw, err := json.Marshal(d.Metadata); err == nil {
				entry.Metadata = datatypes.JSON(raw)
			}
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

// recorder writes audit entries after a commit and logs failures.
type recorder struct {
	audit  AuditLog
	logger *zap.Logger
}

func (r recorder) record(ctx context.Context, entry AuditEntry) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Error("failed to write audit entry",
			zap.String("action", entry.Action),
			zap.String("target_type", entry.TargetType),
			zap.Uint("target_id", entry.TargetID),
			zap.Error(err),
		)
	}
}
