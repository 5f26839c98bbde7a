package repositories

import (
	"context"
	"time"

	"github.com/crewdesk/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PreferenceRepository defines the interface for preference persistence
type PreferenceRepository interface {
	GetOrCreate(ctx context.Context, recipientID string, defaultTypes []string) (*models.NotificationPreferences, error)
	Update(ctx context.Context, prefs *models.NotificationPreferences) error
	UpdatePushToken(ctx context.Context, recipientID, token string) error
	UpdateWebPushSubscription(ctx context.Context, recipientID string, sub *models.WebPushSubscription) error
	ListDailySummaryEnabled(ctx context.Context) ([]models.NotificationPreferences, error)
}

// MongoPreferenceRepository implements PreferenceRepository for MongoDB
type MongoPreferenceRepository struct {
	collection *mongo.Collection
}

// NewMongoPreferenceRepository creates a new MongoPreferenceRepository
func NewMongoPreferenceRepository(db *mongo.Database) *MongoPreferenceRepository {
	return &MongoPreferenceRepository{collection: db.Collection("notification_preferences")}
}

// GetOrCreate returns the recipient's preference document, inserting the
// engine defaults on first access.
func (r *MongoPreferenceRepository) GetOrCreate(ctx context.Context, recipientID string, defaultTypes []string) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	err := r.collection.FindOne(ctx, bson.M{"recipient_id": recipientID}).Decode(&prefs)
	if err == nil {
		return &prefs, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	defaults := models.DefaultPreferences(recipientID, defaultTypes)
	// Upsert so two concurrent first reads do not race into duplicate docs.
	opts := options.Update().SetUpsert(true)
	_, err = r.collection.UpdateOne(ctx,
		bson.M{"recipient_id": recipientID},
		bson.M{"$setOnInsert": defaults},
		opts,
	)
	if err != nil {
		return nil, err
	}
	if err := r.collection.FindOne(ctx, bson.M{"recipient_id": recipientID}).Decode(&prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Update replaces the mutable settings of the recipient's document.
func (r *MongoPreferenceRepository) Update(ctx context.Context, prefs *models.NotificationPreferences) error {
	prefs.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"push_enabled":       prefs.PushEnabled,
			"notification_types": prefs.NotificationTypes,
			"quiet_hours":        prefs.QuietHours,
			"reminder_settings":  prefs.ReminderSettings,
			"updated_at":         prefs.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"recipient_id": prefs.RecipientID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpdatePushToken stores the recipient's mobile push token.
func (r *MongoPreferenceRepository) UpdatePushToken(ctx context.Context, recipientID, token string) error {
	update := bson.M{"$set": bson.M{"push_token": token, "updated_at": time.Now().UTC()}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"recipient_id": recipientID}, update, options.Update().SetUpsert(true))
	return err
}

// UpdateWebPushSubscription stores the recipient's browser subscription.
func (r *MongoPreferenceRepository) UpdateWebPushSubscription(ctx context.Context, recipientID string, sub *models.WebPushSubscription) error {
	update := bson.M{"$set": bson.M{"web_push_subscription": sub, "updated_at": time.Now().UTC()}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"recipient_id": recipientID}, update, options.Update().SetUpsert(true))
	return err
}

// ListDailySummaryEnabled returns every recipient with the daily digest on.
func (r *MongoPreferenceRepository) ListDailySummaryEnabled(ctx context.Context) ([]models.NotificationPreferences, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"reminder_settings.daily_summary.enabled": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var prefs []models.NotificationPreferences
	if err = cursor.All(ctx, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}
