package consultationRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"appointa/models"
)

// EnsureIndexes creates the necessary indexes on the consultations collection.
// The partial unique index is the final linearization point against double
// booking: cancelled rows fall outside it so a freed slot can be rebooked.
func (repo *MongoConsultationRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys: bson.D{{Key: "consultant_id", Value: 1}, {Key: "scheduled_at", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("unique_consultant_slot").
				SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": []string{models.ConsultationScheduled, models.ConsultationCompleted}},
				}),
		},
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}, {Key: "scheduled_at", Value: 1}},
			Options: options.Index().SetName("client_scheduled_idx"),
		},
	}

	_, err := repo.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create consultation indexes: %w", err)
	}
	return nil
}
