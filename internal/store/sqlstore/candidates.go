package sqlstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/store"
)

// ListEligible narrows by kind, rank and banner in SQL and applies the rest of
// filter (studio work ranks live in the attributes document) in Go.
func (s *Store) ListEligible(ctx context.Context, gameType game.Type, filter store.PoolFilter) ([]game.Candidate, error) {
	if filter.Kind == "" {
		filter.Kind = gameType.CandidateKind()
	}
	query := `SELECT attributes FROM candidates WHERE kind = ?`
	args := []any{string(filter.Kind)}
	if filter.MaxPopularityRank > 0 {
		query += ` AND popularity_rank BETWEEN 1 AND ?`
		args = append(args, filter.MaxPopularityRank)
	}
	if filter.RequireBanner {
		query += ` AND banner_url <> ''`
	}
	query += ` ORDER BY id`

	cs, err := s.scanCandidates(ctx, "list eligible candidates", s.q(query), args...)
	if err != nil {
		return nil, err
	}
	out := cs[:0]
	for i := range cs {
		if filter.Match(&cs[i]) {
			out = append(out, cs[i])
		}
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*game.Candidate, error) {
	cs, err := s.scanCandidates(ctx, "get candidate", s.q(`SELECT attributes FROM candidates WHERE id = ?`), id)
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, nil
	}
	return &cs[0], nil
}

// Search matches query against the slugged name, most popular first.
func (s *Store) Search(ctx context.Context, kind game.Kind, query string, limit int) ([]game.Candidate, error) {
	key := store.SearchKey(query)
	if key == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(key) + "%"
	return s.scanCandidates(ctx, "search candidates", s.q(`
		SELECT attributes FROM candidates
		WHERE kind = ? AND search_key LIKE ? ESCAPE '\'
		ORDER BY CASE WHEN popularity_rank > 0 THEN 0 ELSE 1 END, popularity_rank, name
		LIMIT ?`), string(kind), pattern, limit)
}

// UpsertCandidates inserts or replaces cs by id in one transaction.
func (s *Store) UpsertCandidates(ctx context.Context, cs []game.Candidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin upsert candidates", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO candidates (id, kind, name, search_key, popularity_rank, banner_url, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			search_key = excluded.search_key,
			popularity_rank = excluded.popularity_rank,
			banner_url = excluded.banner_url,
			attributes = excluded.attributes`))
	if err != nil {
		return storageErr("prepare upsert candidates", err)
	}
	defer stmt.Close()

	for i := range cs {
		c := &cs[i]
		attrs, err := json.Marshal(c)
		if err != nil {
			return game.NewInvalidInputError("candidate " + c.ID + ": " + err.Error())
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, string(c.Kind), c.Name, store.SearchKey(c.Name), c.PopularityRank, c.BannerURL, string(attrs),
		); err != nil {
			return storageErr("upsert candidate "+c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit upsert candidates", err)
	}
	return nil
}

func (s *Store) scanCandidates(ctx context.Context, op, query string, args ...any) ([]game.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var out []game.Candidate
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, storageErr(op, err)
		}
		var c game.Candidate
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
