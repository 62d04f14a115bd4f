package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxbrief/voxbrief/pkg/core"
	"github.com/voxbrief/voxbrief/pkg/core/drive"
)

// SessionSummary is the per-session record returned by ListSessionMetadata.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	RoomName  string    `json:"room_name"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats aggregates across all stored sessions. Oldest/Newest are nil on an
// empty store.
type Stats struct {
	TotalSessions int        `json:"total_sessions"`
	UniqueUsers   int        `json:"unique_users"`
	OldestSession *time.Time `json:"oldest_session"`
	NewestSession *time.Time `json:"newest_session"`
}

// ListSessions returns the ids of all currently stored sessions.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	return s.liveSessionIDs(ctx)
}

// ListSessionMetadata returns a summary record for every stored session.
// Corrupt records are skipped.
func (s *Store) ListSessionMetadata(ctx context.Context) ([]SessionSummary, error) {
	states, err := s.liveStates(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]SessionSummary, 0, len(states))
	for _, state := range states {
		summaries = append(summaries, SessionSummary{
			SessionID: state.SessionID,
			UserID:    state.UserID,
			RoomName:  state.Metadata.RoomName,
			StartedAt: state.StartedAt,
			UpdatedAt: state.UpdatedAt,
		})
	}
	return summaries, nil
}

// GetSessionsByUser returns the full DriveState records owned by userID.
func (s *Store) GetSessionsByUser(ctx context.Context, userID string) ([]drive.DriveState, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, core.NewStorageError("sessions_by_user", err)
	}

	states := make([]drive.DriveState, 0, len(ids))
	for _, id := range ids {
		state, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if state == nil {
			// Expired or corrupt; drop the stale index entry.
			_ = s.client.SRem(ctx, s.userKey(userID), id).Err()
			continue
		}
		states = append(states, *state)
	}
	return states, nil
}

// DeleteUserSessions removes every session owned by userID and returns how
// many records were actually deleted.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, core.NewStorageError("delete_user_sessions", err)
	}

	deleted := 0
	for _, id := range ids {
		existed, err := s.Delete(ctx, id)
		if err != nil {
			return deleted, err
		}
		if existed {
			deleted++
		}
	}
	if err := s.client.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return deleted, core.NewStorageError("delete_user_sessions", err)
	}
	return deleted, nil
}

// Clear removes every stored session, best effort, and returns the count
// of records deleted.
func (s *Store) Clear(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return 0, core.NewStorageError("clear", err)
	}

	deleted := 0
	for _, id := range ids {
		existed, err := s.Delete(ctx, id)
		if err != nil {
			return deleted, err
		}
		if existed {
			deleted++
		}
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.idsKey())
	pipe.Del(ctx, s.startedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return deleted, core.NewStorageError("clear", err)
	}
	return deleted, nil
}

// GetStats computes aggregate statistics. Oldest/newest come from the
// started-at index rather than a full scan; unique users require reading
// the surviving records.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	if err := s.pruneIndexes(ctx); err != nil {
		return Stats{}, err
	}

	total, err := s.client.SCard(ctx, s.idsKey()).Result()
	if err != nil {
		return Stats{}, core.NewStorageError("stats", err)
	}
	if total == 0 {
		return Stats{}, nil
	}

	stats := Stats{TotalSessions: int(total)}

	oldest, err := s.client.ZRangeWithScores(ctx, s.startedKey(), 0, 0).Result()
	if err != nil {
		return Stats{}, core.NewStorageError("stats", err)
	}
	newest, err := s.client.ZRevRangeWithScores(ctx, s.startedKey(), 0, 0).Result()
	if err != nil {
		return Stats{}, core.NewStorageError("stats", err)
	}
	if len(oldest) > 0 {
		t := time.UnixMilli(int64(oldest[0].Score)).UTC()
		stats.OldestSession = &t
	}
	if len(newest) > 0 {
		t := time.UnixMilli(int64(newest[0].Score)).UTC()
		stats.NewestSession = &t
	}

	states, err := s.liveStates(ctx)
	if err != nil {
		return Stats{}, err
	}
	users := make(map[string]struct{}, len(states))
	for _, state := range states {
		users[state.UserID] = struct{}{}
	}
	stats.UniqueUsers = len(users)

	return stats, nil
}

// liveSessionIDs prunes index entries whose records have expired and
// returns the surviving ids.
func (s *Store) liveSessionIDs(ctx context.Context) ([]string, error) {
	if err := s.pruneIndexes(ctx); err != nil {
		return nil, err
	}
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, core.NewStorageError("list", err)
	}
	return ids, nil
}

// liveStates returns every decodable stored session.
func (s *Store) liveStates(ctx context.Context) ([]drive.DriveState, error) {
	ids, err := s.liveSessionIDs(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]drive.DriveState, 0, len(ids))
	for _, id := range ids {
		state, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if state == nil {
			continue
		}
		states = append(states, *state)
	}
	return states, nil
}

// pruneIndexes drops index entries for records Redis has already expired.
// Per-user sets are pruned lazily on their own read paths.
func (s *Store) pruneIndexes(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return core.NewStorageError("prune", err)
	}
	if len(ids) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		existsCmds[i] = pipe.Exists(ctx, s.dataKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewStorageError("prune", err)
	}

	stale := make([]any, 0)
	for i, cmd := range existsCmds {
		if cmd.Val() == 0 {
			stale = append(stale, ids[i])
		}
	}
	if len(stale) == 0 {
		return nil
	}

	cleanup := s.client.Pipeline()
	cleanup.SRem(ctx, s.idsKey(), stale...)
	cleanup.ZRem(ctx, s.startedKey(), stale...)
	if _, err := cleanup.Exec(ctx); err != nil {
		return core.NewStorageError("prune", err)
	}
	return nil
}
