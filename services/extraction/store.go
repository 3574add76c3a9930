package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"appointa/models"
)

const draftKeyPrefix = "extraction:draft:"

// DraftTTL is the rolling retention for accumulated state. Every save
// restarts the clock, so an active conversation never loses its draft.
const DraftTTL = 24 * time.Hour

// DraftStore persists the per-conversation accumulated state.
type DraftStore interface {
	// Load returns the draft, or nil when absent or already completed.
	Load(ctx context.Context, conversationKey string) (*models.BookingDraft, error)
	Save(ctx context.Context, draft *models.BookingDraft) error
	// MarkCompleted makes the draft inert; later loads return nil and a
	// fresh accumulation starts clean.
	MarkCompleted(ctx context.Context, conversationKey string, at time.Time) error
}

// RedisDraftStore implements DraftStore on the shared cache client.
type RedisDraftStore struct {
	client *redis.Client
}

func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{client: client}
}

func (s *RedisDraftStore) Load(ctx context.Context, conversationKey string) (*models.BookingDraft, error) {
	data, err := s.client.Get(ctx, draftKeyPrefix+conversationKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking draft: %w", err)
	}

	var draft models.BookingDraft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse booking draft: %w", err)
	}
	if draft.CompletedAt != nil {
		return nil, nil
	}
	return &draft, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, draft *models.BookingDraft) error {
	b, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to serialize booking draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKeyPrefix+draft.ConversationKey, b, DraftTTL).Err(); err != nil {
		return fmt.Errorf("failed to save booking draft: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) MarkCompleted(ctx context.Context, conversationKey string, at time.Time) error {
	key := draftKeyPrefix + conversationKey
	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load booking draft for completion: %w", err)
	}

	var draft models.BookingDraft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return fmt.Errorf("failed to parse booking draft for completion: %w", err)
	}
	draft.CompletedAt = &at

	b, err := json.Marshal(&draft)
	if err != nil {
		return fmt.Errorf("failed to serialize completed draft: %w", err)
	}
	if err := s.client.Set(ctx, key, b, DraftTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark draft completed: %w", err)
	}
	return nil
}
