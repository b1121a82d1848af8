package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/robalobadob/dailypuzzle/internal/game"
)

// InsertIfAbsent relies on the (schedule_date, game_type) primary key: the
// loser of a concurrent insert affects no row and reads the winner back.
func (s *Store) InsertIfAbsent(ctx context.Context, date string, gameType game.Type, targetID string) (string, bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO daily_schedules (schedule_date, game_type, target_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (schedule_date, game_type) DO NOTHING`),
		date, string(gameType), targetID, s.timestamp(),
	)
	if err != nil {
		return "", false, storageErr("insert schedule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, storageErr("insert schedule", err)
	}
	if n == 1 {
		return targetID, true, nil
	}

	id, ok, err := s.Get(ctx, date, gameType)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, storageErr("insert schedule", errors.New("conflicting row vanished"))
	}
	return id, false, nil
}

func (s *Store) Get(ctx context.Context, date string, gameType game.Type) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT target_id FROM daily_schedules WHERE schedule_date = ? AND game_type = ?`),
		date, string(gameType),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get schedule", err)
	}
	return id, true, nil
}

func (s *Store) RecentTargets(ctx context.Context, gameType game.Type, from, before string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT target_id FROM daily_schedules
		WHERE game_type = ? AND schedule_date >= ? AND schedule_date < ?
		ORDER BY schedule_date`),
		string(gameType), from, before,
	)
	if err != nil {
		return nil, storageErr("recent targets", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("recent targets", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent targets", err)
	}
	return out, nil
}
