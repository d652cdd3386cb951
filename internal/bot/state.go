package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"landed-bot/internal/pricing"
	"landed-bot/pkg/redis"
)

// UserState is the draft order an operator is building in the dialog.
type UserState struct {
	Step     string              `json:"step"`
	Lines    []pricing.OrderLine `json:"lines,omitempty"`
	Customer string              `json:"customer,omitempty"`
}

type StateStorage struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStateStorage(redis *redis.Client, ttl time.Duration) *StateStorage {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StateStorage{
		redis: redis,
		ttl:   ttl,
	}
}

func (s *StateStorage) Save(ctx context.Context, chatID int64, state UserState) error {
	if err := s.redis.SetJSON(ctx, getStateKey(chatID), state, s.ttl); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Get returns the stored state, or an idle state if there is none.
func (s *StateStorage) Get(ctx context.Context, chatID int64) (UserState, error) {
	var state UserState
	err := s.redis.GetJSON(ctx, getStateKey(chatID), &state)
	if errors.Is(err, redis.ErrMiss) {
		return UserState{}, nil
	}
	if err != nil {
		return UserState{}, fmt.Errorf("failed to get state: %w", err)
	}
	return state, nil
}

func (s *StateStorage) Clear(ctx context.Context, chatID int64) error {
	if err := s.redis.Del(ctx, getStateKey(chatID)); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	return nil
}

func (s *StateStorage) SetStep(ctx context.Context, chatID int64, step string) error {
	state, err := s.Get(ctx, chatID)
	if err != nil {
		return err
	}
	state.Step = step
	return s.Save(ctx, chatID, state)
}

func getStateKey(chatID int64) string {
	return fmt.Sprintf("state:%d", chatID)
}
