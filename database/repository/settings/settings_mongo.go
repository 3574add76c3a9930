package settingsRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"appointa/config"
	"appointa/database"
	"appointa/models"
)

// MongoSettingsRepo implements SettingsRepository using MongoDB.
type MongoSettingsRepo struct {
	coll *mongo.Collection
}

// NewMongoSettingsRepo constructs a new instance of MongoSettingsRepo.
func NewMongoSettingsRepo() SettingsRepository {
	db := database.MongoClient.Database(config.AppConfig.DatabaseName)
	return &MongoSettingsRepo{coll: db.Collection("availability_settings")}
}

// GetByConsultant returns the raw settings document, or nil when absent.
func (repo *MongoSettingsRepo) GetByConsultant(ctx context.Context, consultantID string) (*models.AvailabilitySettings, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s models.AvailabilitySettings
	if err := repo.coll.FindOne(ctx, bson.M{"consultant_id": consultantID}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching settings for consultant %s: %w", consultantID, err)
	}
	return &s, nil
}

// Upsert replaces the consultant's settings document, creating it on first
// save.
func (repo *MongoSettingsRepo) Upsert(ctx context.Context, s *models.AvailabilitySettings) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.UpdatedAt = time.Now().UTC()
	opts := options.Replace().SetUpsert(true)
	if _, err := repo.coll.ReplaceOne(ctx, bson.M{"consultant_id": s.ConsultantID}, s, opts); err != nil {
		return fmt.Errorf("error upserting settings for consultant %s: %w", s.ConsultantID, err)
	}
	return nil
}

// EnsureIndexes creates the necessary indexes on the availability_settings
// collection.
func (repo *MongoSettingsRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "consultant_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_consultant"),
	}
	if _, err := repo.coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create settings indexes: %w", err)
	}
	return nil
}
