// internal/store/memory.go
//
// In-memory implementation of Store.
// Used by tests and by DB_DRIVER=memory for local development, when
// durability is not required.
//
// Characteristics:
//   - One RWMutex guards every map, so AppendGuessAndMaybeTransition is trivially
//     atomic and concurrent submissions for a session serialize.
//   - Sessions are copied on the way in and out; callers never share state with the store.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/dailypuzzle/internal/game"
)

type memory struct {
	mu         sync.RWMutex
	candidates map[string]game.Candidate // keyed by Candidate.ID
	schedules  map[string]string         // keyed by date|gameType
	sessions   map[string]*game.Session  // keyed by Session.ID
	sessionIdx map[string]string         // user|gameType|date → Session.ID
	stats      map[string]*game.Stats    // user|gameType
	now        func() time.Time
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() Store {
	return &memory{
		candidates: make(map[string]game.Candidate),
		schedules:  make(map[string]string),
		sessions:   make(map[string]*game.Session),
		sessionIdx: make(map[string]string),
		stats:      make(map[string]*game.Stats),
		now:        time.Now,
	}
}

func (m *memory) Close() error { return nil }

// ----------------------------- candidates ----------------------------------

func (m *memory) ListEligible(ctx context.Context, gameType game.Type, filter PoolFilter) ([]game.Candidate, error) {
	if filter.Kind == "" {
		filter.Kind = gameType.CandidateKind()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []game.Candidate
	for _, c := range m.candidates {
		if filter.Match(&c) {
			out = append(out, c)
		}
	}
	game.SortCandidates(out)
	return out, nil
}

func (m *memory) GetByID(ctx context.Context, id string) (*game.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memory) Search(ctx context.Context, kind game.Kind, query string, limit int) ([]game.Candidate, error) {
	key := SearchKey(query)
	if key == "" {
		return nil, nil
	}
	m.mu.RLock()
	var out []game.Candidate
	for _, c := range m.candidates {
		if c.Kind == kind && strings.Contains(SearchKey(c.Name), key) {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()
	SortByPopularity(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memory) UpsertCandidates(ctx context.Context, cs []game.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cs {
		m.candidates[c.ID] = c
	}
	return nil
}

// ------------------------------ schedules ----------------------------------

func scheduleKey(date string, gameType game.Type) string { return date + "|" + string(gameType) }

func (m *memory) InsertIfAbsent(ctx context.Context, date string, gameType game.Type, targetID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scheduleKey(date, gameType)
	if existing, ok := m.schedules[k]; ok {
		return existing, false, nil
	}
	m.schedules[k] = targetID
	return targetID, true, nil
}

func (m *memory) Get(ctx context.Context, date string, gameType game.Type) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.schedules[scheduleKey(date, gameType)]
	return id, ok, nil
}

func (m *memory) RecentTargets(ctx context.Context, gameType game.Type, from, before string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k, id := range m.schedules {
		date, gt, _ := strings.Cut(k, "|")
		if game.Type(gt) == gameType && date >= from && date < before {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ------------------------------- sessions ----------------------------------

func sessionKey(userID string, gameType game.Type, date string) string {
	return userID + "|" + string(gameType) + "|" + date
}

func (m *memory) GetSession(ctx context.Context, userID string, gameType game.Type, date string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessionIdx[sessionKey(userID, gameType, date)]
	if !ok {
		return nil, nil
	}
	return cloneSession(m.sessions[id]), nil
}

func (m *memory) GetOrCreateSession(ctx context.Context, userID string, gameType game.Type, date string) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := sessionKey(userID, gameType, date)
	if id, ok := m.sessionIdx[k]; ok {
		return cloneSession(m.sessions[id]), nil
	}
	now := m.now().UTC()
	s := &game.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		GameType:  gameType,
		Date:      date,
		Status:    game.StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[s.ID] = s
	m.sessionIdx[k] = s.ID
	return cloneSession(s), nil
}

func (m *memory) AppendGuessAndMaybeTransition(ctx context.Context, sessionID string, mutate MutateFunc) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[sessionID]
	if !ok {
		return nil, game.NewNotFoundError("session", sessionID)
	}
	work := cloneSession(cur)
	if err := mutate(work); err != nil {
		return nil, err
	}
	if !cur.Status.Terminal() && work.Status.Terminal() {
		m.upsertStatsOnTerminal(work)
	}
	m.sessions[sessionID] = work
	return cloneSession(work), nil
}

// upsertStatsOnTerminal folds a just-finished session into the user's stats.
// Callers hold m.mu and guarantee the transition happened in this call.
func (m *memory) upsertStatsOnTerminal(s *game.Session) {
	k := s.UserID + "|" + string(s.GameType)
	st, ok := m.stats[k]
	if !ok {
		st = &game.Stats{UserID: s.UserID, GameType: s.GameType}
		m.stats[k] = st
	}
	st.Played++
	st.TotalTries += len(s.Guesses)
	if s.Status == game.StatusWon {
		st.Wins++
		at := s.UpdatedAt
		st.LastWonAt = &at
	}
}

func (m *memory) GetStats(ctx context.Context, userID string, gameType game.Type) (*game.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.stats[userID+"|"+string(gameType)]; ok {
		cp := *st
		return &cp, nil
	}
	return &game.Stats{UserID: userID, GameType: gameType}, nil
}

func (m *memory) ListStats(ctx context.Context, gameType game.Type, limit int) ([]game.Stats, error) {
	m.mu.RLock()
	var out []game.Stats
	for _, st := range m.stats {
		if st.GameType == gameType {
			out = append(out, *st)
		}
	}
	m.mu.RUnlock()
	SortStandings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneSession(s *game.Session) *game.Session {
	cp := *s
	cp.Guesses = append([]game.Guess(nil), s.Guesses...)
	return &cp
}
