package clientRepo

import (
	"context"

	"appointa/models"
)

// ClientRepository is the store contract for client records.
type ClientRepository interface {
	// GetByID returns the client, or nil when unknown.
	GetByID(ctx context.Context, id string) (*models.Client, error)
	// GetByPhone returns the client matching the phone number, or nil.
	GetByPhone(ctx context.Context, phone string) (*models.Client, error)
	Upsert(ctx context.Context, c *models.Client) error
	EnsureIndexes() error
}
