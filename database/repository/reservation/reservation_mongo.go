package reservationRepo

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

// MongoReservationRepo implements ReservationRepository using MongoDB.
type MongoReservationRepo struct {
	coll *mongo.Collection
}

// NewMongoReservationRepo constructs a new instance of MongoReservationRepo.
func NewMongoReservationRepo() ReservationRepository {
	db := database.MongoClient.Database(config.AppConfig.DatabaseName)
	return &MongoReservationRepo{coll: db.Collection("pending_reservations")}
}

// Create inserts a new pending reservation document.
func (repo *MongoReservationRepo) Create(ctx context.Context, r *models.PendingReservation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := repo.coll.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("error creating pending reservation: %w", err)
	}
	return nil
}

// GetByToken returns the reservation regardless of status, or nil when the
// token is unknown.
func (repo *MongoReservationRepo) GetByToken(ctx context.Context, token string) (*models.PendingReservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var r models.PendingReservation
	if err := repo.coll.FindOne(ctx, bson.M{"token": token}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching reservation by token: %w", err)
	}
	return &r, nil
}

// LatestAwaitingForConversation returns the newest live hold for the
// conversation, or nil. The supersede rule keeps at most one live row, so
// the created_at sort is only a tiebreak inside a race window.
func (repo *MongoReservationRepo) LatestAwaitingForConversation(ctx context.Context, conversationID string, now time.Time) (*models.PendingReservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationID,
		"status":          models.ReservationAwaitingConfirm,
		"expires_at":      bson.M{"$gt": now},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var r models.PendingReservation
	if err := repo.coll.FindOne(ctx, filter, opts).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching reservation for conversation %s: %w", conversationID, err)
	}
	return &r, nil
}

// HasLiveHoldAt reports an unexpired awaiting_confirm hold at exactly the
// given instant, ignoring holds owned by excludeConversation.
func (repo *MongoReservationRepo) HasLiveHoldAt(ctx context.Context, consultantID string, at, now time.Time, excludeConversation string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"consultant_id": consultantID,
		"start_at":      at,
		"status":        models.ReservationAwaitingConfirm,
		"expires_at":    bson.M{"$gt": now},
	}
	if excludeConversation != "" {
		filter["conversation_id"] = bson.M{"$ne": excludeConversation}
	}
	count, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("error checking live hold: %w", err)
	}
	return count > 0, nil
}

// ListLiveOverlapping returns unexpired live holds intersecting [from, to).
func (repo *MongoReservationRepo) ListLiveOverlapping(ctx context.Context, consultantID string, from, to, now time.Time) ([]models.PendingReservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"consultant_id": consultantID,
		"status":        models.ReservationAwaitingConfirm,
		"expires_at":    bson.M{"$gt": now},
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$lt": bson.A{"$start_at", to}},
			bson.M{"$gt": bson.A{
				bson.M{"$add": bson.A{"$start_at", bson.M{"$multiply": bson.A{"$duration_minutes", 60000}}}},
				from,
			}},
		}},
	}
	cursor, err := repo.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error fetching live holds: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.PendingReservation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding live holds: %w", err)
	}
	return out, nil
}

// SupersedeForConversation moves every live hold of the conversation to
// superseded.
func (repo *MongoReservationRepo) SupersedeForConversation(ctx context.Context, conversationID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationID,
		"status":          models.ReservationAwaitingConfirm,
	}
	res, err := repo.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": models.ReservationSuperseded}})
	if err != nil {
		return 0, fmt.Errorf("error superseding holds for conversation %s: %w", conversationID, err)
	}
	return res.ModifiedCount, nil
}

// ConfirmTransition flips the row to confirmed only while it is still
// awaiting_confirm and unexpired. The guard re-validates everything the
// caller checked in advisory reads; zero matches means a concurrent actor
// already resolved the row.
func (repo *MongoReservationRepo) ConfirmTransition(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"id":         id,
		"status":     models.ReservationAwaitingConfirm,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{
		"status":       models.ReservationConfirmed,
		"confirmed_at": now,
	}}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("error confirming reservation %s: %w", id, err)
	}
	return res.ModifiedCount == 1, nil
}

// MarkStatus unconditionally sets a terminal status.
func (repo *MongoReservationRepo) MarkStatus(ctx context.Context, id, status string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("error marking reservation %s as %s: %w", id, status, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("reservation %s not found", id)
	}
	return nil
}

// SetConsultationRef stores the booking back-link; set exactly once.
func (repo *MongoReservationRepo) SetConsultationRef(ctx context.Context, id, consultationID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id, "consultation_id": bson.M{"$exists": false}}
	res, err := repo.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"consultation_id": consultationID}})
	if err != nil {
		return fmt.Errorf("error linking consultation to reservation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("reservation %s not found or already linked", id)
	}
	return nil
}

// ExpireOverdue sweeps overdue live holds to expired.
func (repo *MongoReservationRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"status":     models.ReservationAwaitingConfirm,
		"expires_at": bson.M{"$lte": now},
	}
	res, err := repo.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": models.ReservationExpired}})
	if err != nil {
		return 0, fmt.Errorf("error expiring overdue reservations: %w", err)
	}
	return res.ModifiedCount, nil
}
