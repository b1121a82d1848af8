package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/store"
)

const sessionColumns = `id, user_id, game_type, session_date, status, created_at, updated_at`

func (s *Store) GetSession(ctx context.Context, userID string, gameType game.Type, date string) (*game.Session, error) {
	return s.loadSession(ctx, s.db,
		s.q(`SELECT `+sessionColumns+` FROM game_sessions WHERE user_id = ? AND game_type = ? AND session_date = ?`),
		userID, string(gameType), date)
}

// GetOrCreateSession inserts an in_progress row unless the (user, game type,
// date) key already exists, then reads the surviving row.
func (s *Store) GetOrCreateSession(ctx context.Context, userID string, gameType game.Type, date string) (*game.Session, error) {
	now := s.timestamp()
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO game_sessions (id, user_id, game_type, session_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, game_type, session_date) DO NOTHING`),
		uuid.NewString(), userID, string(gameType), date, string(game.StatusInProgress), now, now,
	); err != nil {
		return nil, storageErr("create session", err)
	}
	sess, err := s.GetSession(ctx, userID, gameType, date)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, storageErr("create session", errors.New("session row missing after insert"))
	}
	return sess, nil
}

// AppendGuessAndMaybeTransition runs the whole submit step in one transaction:
// lock the session, let mutate append and transition it, write the new guesses
// and the status, and fold a terminal session into game_stats.
func (s *Store) AppendGuessAndMaybeTransition(ctx context.Context, sessionID string, mutate store.MutateFunc) (*game.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin guess transaction", err)
	}
	defer tx.Rollback()

	cur, err := s.loadSession(ctx, tx,
		s.q(`SELECT `+sessionColumns+` FROM game_sessions WHERE id = ?`+s.forUpdate()), sessionID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, game.NewNotFoundError("session", sessionID)
	}

	work := *cur
	work.Guesses = append([]game.Guess(nil), cur.Guesses...)
	if err := mutate(&work); err != nil {
		return nil, err
	}

	for _, g := range work.Guesses[len(cur.Guesses):] {
		if err := s.insertGuess(ctx, tx, sessionID, g); err != nil {
			return nil, err
		}
	}
	work.UpdatedAt = work.UpdatedAt.UTC()
	if _, err := tx.ExecContext(ctx,
		s.q(`UPDATE game_sessions SET status = ?, updated_at = ? WHERE id = ?`),
		string(work.Status), formatTime(work.UpdatedAt), sessionID,
	); err != nil {
		return nil, storageErr("update session", err)
	}
	if !cur.Status.Terminal() && work.Status.Terminal() {
		if err := s.upsertStatsOnTerminal(ctx, tx, &work); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit guess transaction", err)
	}
	return &work, nil
}

func (s *Store) insertGuess(ctx context.Context, tx *sql.Tx, sessionID string, g game.Guess) error {
	payload, err := game.EncodePayload(g.Payload)
	if err != nil {
		return storageErr("encode guess payload", err)
	}
	results, err := json.Marshal(g.Results)
	if err != nil {
		return storageErr("encode guess results", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO guesses (session_id, seq, candidate_id, payload, results, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		sessionID, g.Seq, g.CandidateID, string(payload), string(results), formatTime(g.CreatedAt),
	); err != nil {
		return storageErr("insert guess", err)
	}
	return nil
}

// upsertStatsOnTerminal adds one finished session to the user's aggregate.
func (s *Store) upsertStatsOnTerminal(ctx context.Context, tx *sql.Tx, sess *game.Session) error {
	wins := 0
	var lastWon any
	if sess.Status == game.StatusWon {
		wins = 1
		lastWon = formatTime(sess.UpdatedAt)
	}
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO game_stats (user_id, game_type, played, wins, total_tries, last_won_at)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT (user_id, game_type) DO UPDATE SET
			played = game_stats.played + 1,
			wins = game_stats.wins + excluded.wins,
			total_tries = game_stats.total_tries + excluded.total_tries,
			last_won_at = COALESCE(excluded.last_won_at, game_stats.last_won_at)`),
		sess.UserID, string(sess.GameType), wins, len(sess.Guesses), lastWon,
	); err != nil {
		return storageErr("upsert stats", err)
	}
	return nil
}

func (s *Store) GetStats(ctx context.Context, userID string, gameType game.Type) (*game.Stats, error) {
	rows, err := s.queryStats(ctx, s.q(`
		SELECT user_id, game_type, played, wins, total_tries, last_won_at
		FROM game_stats WHERE user_id = ? AND game_type = ?`), userID, string(gameType))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &game.Stats{UserID: userID, GameType: gameType}, nil
	}
	return &rows[0], nil
}

func (s *Store) ListStats(ctx context.Context, gameType game.Type, limit int) ([]game.Stats, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryStats(ctx, s.q(`
		SELECT user_id, game_type, played, wins, total_tries, last_won_at
		FROM game_stats WHERE game_type = ?
		ORDER BY wins DESC, total_tries ASC, user_id ASC
		LIMIT ?`), string(gameType), limit)
}

func (s *Store) queryStats(ctx context.Context, query string, args ...any) ([]game.Stats, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query stats", err)
	}
	defer rows.Close()

	var out []game.Stats
	for rows.Next() {
		var (
			st      game.Stats
			gt      string
			lastWon sql.NullString
		)
		if err := rows.Scan(&st.UserID, &gt, &st.Played, &st.Wins, &st.TotalTries, &lastWon); err != nil {
			return nil, storageErr("scan stats", err)
		}
		st.GameType = game.Type(gt)
		if lastWon.Valid {
			t := parseTime(lastWon.String)
			st.LastWonAt = &t
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query stats", err)
	}
	return out, nil
}

// loadSession reads one session row and its guesses; nil, nil when absent.
func (s *Store) loadSession(ctx context.Context, q querier, query string, args ...any) (*game.Session, error) {
	var (
		sess                 game.Session
		gt, status           string
		createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&sess.ID, &sess.UserID, &gt, &sess.Date, &status, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("load session", err)
	}
	sess.GameType = game.Type(gt)
	sess.Status = game.Status(status)
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)

	rows, err := q.QueryContext(ctx, s.q(`
		SELECT seq, candidate_id, payload, results, created_at
		FROM guesses WHERE session_id = ? ORDER BY seq`), sess.ID)
	if err != nil {
		return nil, storageErr("load guesses", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			g                         game.Guess
			payload, results, created string
		)
		if err := rows.Scan(&g.Seq, &g.CandidateID, &payload, &results, &created); err != nil {
			return nil, storageErr("scan guess", err)
		}
		if g.Payload, err = game.DecodePayload([]byte(payload)); err != nil {
			return nil, storageErr("decode guess payload", err)
		}
		if err := json.Unmarshal([]byte(results), &g.Results); err != nil {
			return nil, storageErr("decode guess results", err)
		}
		g.CreatedAt = parseTime(created)
		sess.Guesses = append(sess.Guesses, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load guesses", err)
	}
	return &sess, nil
}
