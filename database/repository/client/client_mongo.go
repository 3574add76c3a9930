package clientRepo

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

// MongoClientRepo implements ClientRepository using MongoDB.
type MongoClientRepo struct {
	coll *mongo.Collection
}

// NewMongoClientRepo constructs a new instance of MongoClientRepo.
func NewMongoClientRepo() ClientRepository {
	db := database.MongoClient.Database(config.AppConfig.DatabaseName)
	return &MongoClientRepo{coll: db.Collection("clients")}
}

// GetByID returns the client, or nil when unknown.
func (repo *MongoClientRepo) GetByID(ctx context.Context, id string) (*models.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c models.Client
	if err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching client %s: %w", id, err)
	}
	return &c, nil
}

// GetByPhone returns the client matching the phone number, or nil.
func (repo *MongoClientRepo) GetByPhone(ctx context.Context, phone string) (*models.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c models.Client
	if err := repo.coll.FindOne(ctx, bson.M{"phone": phone}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching client by phone: %w", err)
	}
	return &c, nil
}

// Upsert writes the client record keyed by id.
func (repo *MongoClientRepo) Upsert(ctx context.Context, c *models.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := repo.coll.ReplaceOne(ctx, bson.M{"id": c.ID}, c, opts); err != nil {
		return fmt.Errorf("error upserting client %s: %w", c.ID, err)
	}
	return nil
}

// EnsureIndexes creates the necessary indexes on the clients collection.
func (repo *MongoClientRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetName("phone_idx"),
		},
	}
	if _, err := repo.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create client indexes: %w", err)
	}
	return nil
}
