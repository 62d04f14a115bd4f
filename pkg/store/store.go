// Package store persists DriveState records in Redis under a configurable
// key prefix, with sliding per-session TTLs and secondary indexes for
// listing by user and aggregate statistics.
//
// Two independent writers (the reasoning loop's tool calls and the shadow
// dispatcher) hit the same session key, so Update is a version-stamped
// compare-and-swap: a writer holding a stale snapshot gets a version
// conflict instead of silently clobbering the other's advance. Mutate
// wraps the load-transition-write-retry loop for callers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxbrief/voxbrief/pkg/core"
	"github.com/voxbrief/voxbrief/pkg/core/drive"
)

const (
	// DefaultKeyPrefix namespaces all session keys in the cache.
	DefaultKeyPrefix = "session:"
	// DefaultTTL is the idle lifetime applied when a session specifies none.
	DefaultTTL = drive.DefaultTTLSeconds * time.Second

	// maxMutateRetries bounds how often Mutate reloads and reapplies a
	// transition after losing a compare-and-swap race.
	maxMutateRetries = 5
)

// Config configures a Store.
type Config struct {
	Client     redis.UniversalClient
	KeyPrefix  string
	DefaultTTL time.Duration
	Logger     *slog.Logger
}

// Store is a durable, keyed session store over an external Redis cache.
type Store struct {
	client     redis.UniversalClient
	keyPrefix  string
	defaultTTL time.Duration
	logger     *slog.Logger
}

// New creates a Store. The client is required; prefix and TTL fall back to
// defaults.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		client:     cfg.Client,
		keyPrefix:  prefix,
		defaultTTL: ttl,
		logger:     logger,
	}
}

// Ping verifies connectivity to the underlying cache.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return core.NewStorageError("ping", err)
	}
	return nil
}

func (s *Store) dataKey(sessionID string) string {
	return s.keyPrefix + sessionID
}

func (s *Store) idsKey() string {
	return s.keyPrefix + "index:ids"
}

func (s *Store) userKey(userID string) string {
	return s.keyPrefix + "index:user:" + userID
}

func (s *Store) startedKey() string {
	return s.keyPrefix + "index:started"
}

func (s *Store) recordTTL(state drive.DriveState) time.Duration {
	if state.TTLSeconds > 0 {
		return state.TTL()
	}
	return s.defaultTTL
}

// Create writes a new session record and arms its TTL. Fails with an
// already-exists error when a record is present for the session id.
func (s *Store) Create(ctx context.Context, state drive.DriveState) (drive.DriveState, error) {
	state.Version = 1
	payload, err := json.Marshal(state)
	if err != nil {
		return drive.DriveState{}, core.NewStorageError("create", err)
	}

	ok, err := s.client.SetNX(ctx, s.dataKey(state.SessionID), payload, s.recordTTL(state)).Result()
	if err != nil {
		return drive.DriveState{}, core.NewStorageError("create", err)
	}
	if !ok {
		return drive.DriveState{}, core.NewAlreadyExistsError(state.SessionID)
	}

	if err := s.addToIndexes(ctx, state); err != nil {
		return drive.DriveState{}, err
	}
	return state, nil
}

func (s *Store) addToIndexes(ctx context.Context, state drive.DriveState) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, s.idsKey(), state.SessionID)
	pipe.SAdd(ctx, s.userKey(state.UserID), state.SessionID)
	pipe.ZAdd(ctx, s.startedKey(), redis.Z{
		Score:  float64(state.StartedAt.UnixMilli()),
		Member: state.SessionID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewStorageError("index", err)
	}
	return nil
}

// Get returns the stored session, or nil if absent. A payload that fails
// decoding or structural validation is treated as absent rather than
// fatal, so one corrupt record cannot crash-loop its consumers.
func (s *Store) Get(ctx context.Context, sessionID string) (*drive.DriveState, error) {
	raw, err := s.client.Get(ctx, s.dataKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewStorageError("get", err)
	}

	state, err := s.decode(raw)
	if err != nil {
		s.logger.Warn("discarding corrupt session payload",
			"session_id", sessionID, "error", err)
		return nil, nil
	}
	return state, nil
}

func (s *Store) decode(raw []byte) (*drive.DriveState, error) {
	var state drive.DriveState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	if err := drive.Validate(state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Update overwrites an existing record and slides its TTL forward by the
// session's configured lifetime. Fails with a not-found error when no
// record exists, and with a version conflict when the caller's snapshot is
// stale relative to the stored record.
func (s *Store) Update(ctx context.Context, state drive.DriveState) (drive.DriveState, error) {
	key := s.dataKey(state.SessionID)
	written := state

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return core.NewNotFoundError(state.SessionID)
		}
		if err != nil {
			return core.NewStorageError("update", err)
		}

		stored, decodeErr := s.decode(raw)
		if decodeErr != nil {
			// Corrupt stored payload reads as absent everywhere else.
			return core.NewNotFoundError(state.SessionID)
		}
		if stored.Version != state.Version {
			return core.NewVersionConflictError(state.SessionID)
		}

		written.Version = state.Version + 1
		payload, err := json.Marshal(written)
		if err != nil {
			return core.NewStorageError("update", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.recordTTL(written))
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return drive.DriveState{}, core.NewVersionConflictError(state.SessionID)
	}
	if err != nil {
		var ce *core.Error
		if errors.As(err, &ce) {
			return drive.DriveState{}, ce
		}
		return drive.DriveState{}, core.NewStorageError("update", err)
	}
	return written, nil
}

// Set upserts: create semantics when the session is absent, forced
// overwrite (no version check) when present.
func (s *Store) Set(ctx context.Context, state drive.DriveState) (drive.DriveState, error) {
	raw, err := s.client.Get(ctx, s.dataKey(state.SessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.Create(ctx, state)
	}
	if err != nil {
		return drive.DriveState{}, core.NewStorageError("set", err)
	}

	state.Version = 1
	if stored, decodeErr := s.decode(raw); decodeErr == nil {
		state.Version = stored.Version + 1
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return drive.DriveState{}, core.NewStorageError("set", err)
	}
	if err := s.client.Set(ctx, s.dataKey(state.SessionID), payload, s.recordTTL(state)).Err(); err != nil {
		return drive.DriveState{}, core.NewStorageError("set", err)
	}
	if err := s.addToIndexes(ctx, state); err != nil {
		return drive.DriveState{}, err
	}
	return state, nil
}

// Delete removes a session record and its index entries. Returns whether a
// record existed.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	// Read first to learn the owner for index cleanup; a corrupt or missing
	// payload still gets its keys removed.
	userID := ""
	if raw, err := s.client.Get(ctx, s.dataKey(sessionID)).Bytes(); err == nil {
		if stored, decodeErr := s.decode(raw); decodeErr == nil {
			userID = stored.UserID
		}
	}

	pipe := s.client.Pipeline()
	del := pipe.Del(ctx, s.dataKey(sessionID))
	pipe.SRem(ctx, s.idsKey(), sessionID)
	pipe.ZRem(ctx, s.startedKey(), sessionID)
	if userID != "" {
		pipe.SRem(ctx, s.userKey(userID), sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, core.NewStorageError("delete", err)
	}
	return del.Val() > 0, nil
}

// Exists reports whether a record is stored for the session id.
func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.dataKey(sessionID)).Result()
	if err != nil {
		return false, core.NewStorageError("exists", err)
	}
	return n > 0, nil
}

// GetTTL returns the remaining lifetime in seconds, -1 for a record with
// no expiry, or -2 if the session does not exist.
func (s *Store) GetTTL(ctx context.Context, sessionID string) (int64, error) {
	d, err := s.client.TTL(ctx, s.dataKey(sessionID)).Result()
	if err != nil {
		return 0, core.NewStorageError("ttl", err)
	}
	// go-redis reports the -1/-2 sentinels as bare durations.
	if d == -1 || d == -2 {
		return int64(d), nil
	}
	return int64(d / time.Second), nil
}

// ExtendTTL re-arms the session's expiry. A zero or negative duration uses
// the store's default TTL. Returns false when the session does not exist.
func (s *Store) ExtendTTL(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	ok, err := s.client.Expire(ctx, s.dataKey(sessionID), ttl).Result()
	if err != nil {
		return false, core.NewStorageError("extend_ttl", err)
	}
	return ok, nil
}

// Mutate loads the session, applies fn, and writes the result back with
// compare-and-swap, retrying on version conflicts. Returns a not-found
// error when the session is absent; fn errors abort without writing.
func (s *Store) Mutate(ctx context.Context, sessionID string,
	fn func(drive.DriveState) (drive.DriveState, error)) (drive.DriveState, error) {

	var lastErr error
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		current, err := s.Get(ctx, sessionID)
		if err != nil {
			return drive.DriveState{}, err
		}
		if current == nil {
			return drive.DriveState{}, core.NewNotFoundError(sessionID)
		}

		next, err := fn(*current)
		if err != nil {
			return drive.DriveState{}, err
		}

		written, err := s.Update(ctx, next)
		if err == nil {
			return written, nil
		}
		if !core.IsType(err, core.ErrVersionConflict) {
			return drive.DriveState{}, err
		}
		lastErr = err
	}
	return drive.DriveState{}, lastErr
}
