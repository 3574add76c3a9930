package consultationRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"appointa/config"
	"appointa/database"
	"appointa/models"
)

// ErrDuplicateSlot is returned by Create when the partial unique index on
// (consultant_id, scheduled_at) rejects the insert. Callers treat it as the
// final arbiter against double booking.
var ErrDuplicateSlot = errors.New("a non-cancelled consultation already occupies this slot")

// MongoConsultationRepo implements ConsultationRepository using MongoDB.
type MongoConsultationRepo struct {
	coll *mongo.Collection
}

// NewMongoConsultationRepo constructs a new instance of MongoConsultationRepo.
func NewMongoConsultationRepo() ConsultationRepository {
	db := database.MongoClient.Database(config.AppConfig.DatabaseName)
	return &MongoConsultationRepo{coll: db.Collection("consultations")}
}

func notCancelled() bson.M {
	return bson.M{"$in": []string{models.ConsultationScheduled, models.ConsultationCompleted}}
}

// Create inserts a new consultation document.
func (repo *MongoConsultationRepo) Create(ctx context.Context, c *models.Consultation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := repo.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("error creating consultation: %w", err)
	}
	return nil
}

// GetByID retrieves a consultation by its ID.
func (repo *MongoConsultationRepo) GetByID(ctx context.Context, id string) (*models.Consultation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c models.Consultation
	if err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching consultation %s: %w", id, err)
	}
	return &c, nil
}

// ExistsAt reports a non-cancelled booking at exactly the given instant.
func (repo *MongoConsultationRepo) ExistsAt(ctx context.Context, consultantID string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"consultant_id": consultantID,
		"scheduled_at":  at,
		"status":        notCancelled(),
	}
	count, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("error checking consultation at %s: %w", at, err)
	}
	return count > 0, nil
}

// ListOverlapping returns non-cancelled bookings intersecting [from, to).
// The end instant is derived in the query from duration_minutes.
func (repo *MongoConsultationRepo) ListOverlapping(ctx context.Context, consultantID string, from, to time.Time) ([]models.Consultation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"consultant_id": consultantID,
		"status":        notCancelled(),
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$lt": bson.A{"$scheduled_at", to}},
			bson.M{"$gt": bson.A{
				bson.M{"$add": bson.A{"$scheduled_at", bson.M{"$multiply": bson.A{"$duration_minutes", 60000}}}},
				from,
			}},
		}},
	}
	cursor, err := repo.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error fetching overlapping consultations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Consultation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding consultations: %w", err)
	}
	return out, nil
}

// ListForClientInRange returns the client's scheduled and completed bookings
// with scheduled_at in [from, to].
func (repo *MongoConsultationRepo) ListForClientInRange(ctx context.Context, clientID string, from, to time.Time) ([]models.Consultation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"client_id":    clientID,
		"status":       notCancelled(),
		"scheduled_at": bson.M{"$gte": from, "$lte": to},
	}
	cursor, err := repo.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error fetching client consultations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Consultation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding client consultations: %w", err)
	}
	return out, nil
}

// HasConflict reports a non-cancelled booking (other than excludeID)
// overlapping [from, to).
func (repo *MongoConsultationRepo) HasConflict(ctx context.Context, consultantID string, from, to time.Time, excludeID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"consultant_id": consultantID,
		"status":        notCancelled(),
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$lt": bson.A{"$scheduled_at", to}},
			bson.M{"$gt": bson.A{
				bson.M{"$add": bson.A{"$scheduled_at", bson.M{"$multiply": bson.A{"$duration_minutes", 60000}}}},
				from,
			}},
		}},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}
	count, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("error checking consultation conflict: %w", err)
	}
	return count > 0, nil
}

// UpdateSchedule moves a consultation to a new start (and optionally a new
// duration) and records the completed action.
func (repo *MongoConsultationRepo) UpdateSchedule(ctx context.Context, id string, newStart time.Time, newDuration int, action *models.CompletedAction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"scheduled_at":          newStart,
		"last_completed_action": action,
		"updated_at":            time.Now().UTC(),
	}
	if newDuration > 0 {
		set["duration_minutes"] = newDuration
	}
	res, err := repo.coll.UpdateOne(ctx, bson.M{"id": id, "status": models.ConsultationScheduled}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("error rescheduling consultation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("consultation %s not found or not scheduled", id)
	}
	return nil
}

// Cancel soft-deletes a consultation via status and records the action.
func (repo *MongoConsultationRepo) Cancel(ctx context.Context, id string, action *models.CompletedAction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":                models.ConsultationCancelled,
		"cancelled_at":          now,
		"last_completed_action": action,
		"updated_at":            now,
	}}
	res, err := repo.coll.UpdateOne(ctx, bson.M{"id": id, "status": bson.M{"$ne": models.ConsultationCancelled}}, update)
	if err != nil {
		return fmt.Errorf("error cancelling consultation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("consultation %s not found or already cancelled", id)
	}
	return nil
}

// AddAttendees appends the given emails (deduplicated by $addToSet) and
// records the action.
func (repo *MongoConsultationRepo) AddAttendees(ctx context.Context, id string, emails []string, action *models.CompletedAction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$addToSet": bson.M{"attendees": bson.M{"$each": emails}},
		"$set": bson.M{
			"last_completed_action": action,
			"updated_at":            time.Now().UTC(),
		},
	}
	res, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("error adding attendees to consultation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("consultation %s not found", id)
	}
	return nil
}

// SetCalendarRef stores the external calendar linkage after a best-effort
// event creation succeeds.
func (repo *MongoConsultationRepo) SetCalendarRef(ctx context.Context, id, googleEventID, meetLink string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"google_event_id": googleEventID,
		"meet_link":       meetLink,
		"updated_at":      time.Now().UTC(),
	}}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error storing calendar ref for consultation %s: %w", id, err)
	}
	return nil
}
