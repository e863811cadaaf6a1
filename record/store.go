// Package record implements authflow.RecordStore over Redis: one hash per
// user under user_analytics:<id>, holding the seven gameplay fields.
package record

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/hugoland/authflow"
)

const defaultPrefix = "user_analytics"

const (
	fieldUserID    = "user_id"
	fieldCoins     = "coins"
	fieldGems      = "gems"
	fieldHealth    = "health"
	fieldMaxHealth = "max_health"
	fieldZone      = "zone"
	fieldAttack    = "attack"
	fieldDefense   = "defense"
)

var errRedisUnavailable = errors.New("analytics redis unavailable")

// Store is a Redis-backed per-user analytics table. Safe for concurrent use.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New wires a Store. prefix defaults to "user_analytics" when empty.
func New(rdb *redis.Client, prefix string) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("nil redis client")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}, nil
}

func (s *Store) key(userID string) string {
	return s.prefix + ":" + userID
}

// FindByUser implements authflow.RecordStore. Absence is authflow.ErrNoRow.
func (s *Store) FindByUser(ctx context.Context, userID string) (authflow.Snapshot, error) {
	row, err := s.rdb.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return authflow.Snapshot{}, fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if len(row) == 0 {
		return authflow.Snapshot{}, authflow.ErrNoRow
	}
	return decodeRow(userID, row)
}

// Update implements authflow.RecordStore. Updating an absent row is
// authflow.ErrNoRow; the caller decides update-vs-insert from FindByUser.
func (s *Store) Update(ctx context.Context, snap authflow.Snapshot) error {
	exists, err := s.rdb.Exists(ctx, s.key(snap.UserID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if exists == 0 {
		return authflow.ErrNoRow
	}
	return s.write(ctx, snap)
}

// Insert implements authflow.RecordStore. A concurrent insert for the same
// user simply overwrites; the row is keyed on user_id so no duplicate can
// persist.
func (s *Store) Insert(ctx context.Context, snap authflow.Snapshot) error {
	return s.write(ctx, snap)
}

func (s *Store) write(ctx context.Context, snap authflow.Snapshot) error {
	if err := s.rdb.HSet(ctx, s.key(snap.UserID),
		fieldUserID, snap.UserID,
		fieldCoins, snap.Coins,
		fieldGems, snap.Gems,
		fieldHealth, snap.Health,
		fieldMaxHealth, snap.MaxHealth,
		fieldZone, snap.Zone,
		fieldAttack, snap.Attack,
		fieldDefense, snap.Defense,
	).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

func decodeRow(userID string, row map[string]string) (authflow.Snapshot, error) {
	snap := authflow.Snapshot{UserID: userID}
	for field, dst := range map[string]*int64{
		fieldCoins:     &snap.Coins,
		fieldGems:      &snap.Gems,
		fieldHealth:    &snap.Health,
		fieldMaxHealth: &snap.MaxHealth,
		fieldZone:      &snap.Zone,
		fieldAttack:    &snap.Attack,
		fieldDefense:   &snap.Defense,
	} {
		raw, ok := row[field]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return authflow.Snapshot{}, fmt.Errorf("corrupt analytics field %s: %v", field, err)
		}
		*dst = n
	}
	return snap, nil
}
