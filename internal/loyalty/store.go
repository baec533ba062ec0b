// Package loyalty keeps the customer profiles behind identified payment
// attributions, keyed by phone number per restaurant.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/msxsistemas/quick-bite-craft-sub000/internal/billing"
)

var ErrProfileNotFound = errors.New("loyalty profile not found")

// Profile is one diner's loyalty record.
type Profile struct {
	Phone    string    `json:"phone"`
	Name     string    `json:"name"`
	Visits   int64     `json:"visits"`
	LastSeen time.Time `json:"last_seen"`
}

// Store reads and writes profiles in Redis.
type Store struct {
	rdb *redis.Client
}

// New wraps a connected Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func profileKey(restaurantID uuid.UUID, phone string) string {
	return fmt.Sprintf("loyalty:%s:%s", restaurantID, phone)
}

// Record upserts the profiles behind a payment's identified attributions and
// bumps their visit counters. Unidentified slots carry no profile and are
// skipped.
func (s *Store) Record(ctx context.Context, restaurantID uuid.UUID, customers []billing.Customer) error {
	now := time.Now().UTC()
	for _, c := range customers {
		if !c.Identified || c.Phone == "" {
			continue
		}
		key := profileKey(restaurantID, c.Phone)
		pipe := s.rdb.TxPipeline()
		pipe.HSet(ctx, key, "phone", c.Phone, "name", c.Name, "last_seen", now.Format(time.RFC3339))
		pipe.HIncrBy(ctx, key, "visits", 1)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to record loyalty profile for %s: %w", c.Phone, err)
		}
	}
	return nil
}

// Lookup fetches one profile by phone number.
func (s *Store) Lookup(ctx context.Context, restaurantID uuid.UUID, phone string) (*Profile, error) {
	vals, err := s.rdb.HGetAll(ctx, profileKey(restaurantID, phone)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to look up loyalty profile: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrProfileNotFound
	}

	return profileFromHash(vals), nil
}

// profileFromHash decodes the Redis hash fields, tolerating missing or
// malformed entries so a half-written profile still resolves.
func profileFromHash(vals map[string]string) *Profile {
	p := &Profile{Phone: vals["phone"], Name: vals["name"]}
	if visits, err := strconv.ParseInt(vals["visits"], 10, 64); err == nil {
		p.Visits = visits
	}
	if ts, err := time.Parse(time.RFC3339, vals["last_seen"]); err == nil {
		p.LastSeen = ts
	}
	return p
}
