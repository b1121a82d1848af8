// internal/game/engine.go
//
// Core evaluation engine for the daily puzzles.
// Responsibilities:
//   - Score a guessed candidate against the hidden target, field by field.
//   - Apply a scored guess to a session and drive its state transitions:
//     in_progress → won / failed.
//
// Notes:
//   - Evaluate is a total, pure function: no I/O, same input → same output.
//   - The identity field is compared by candidate id and is the only win condition;
//     matching every other field is still a miss.
package game

import (
	"sort"
	"strings"
	"time"
)

// Evaluate scores candidate against target using the schema of t.
// Every schema field is present in the output, in schema order.
func Evaluate(t Type, candidate, target *Candidate) []FieldResult {
	schema := Schema(t)
	out := make([]FieldResult, 0, len(schema))
	for _, f := range schema {
		out = append(out, FieldResult{Field: f.Name, Outcome: compare(f, candidate, target)})
	}
	return out
}

// compare resolves a single field.
func compare(f Field, candidate, target *Candidate) Outcome {
	if f.Kind == IdentityField {
		if candidate.ID == target.ID {
			return OutcomeExact
		}
		return OutcomeNone
	}

	g, t := f.extract(candidate), f.extract(target)
	if !g.ok || !t.ok {
		return OutcomeUnknown
	}

	switch f.Kind {
	case CategoryField:
		if strings.EqualFold(g.text, t.text) {
			return OutcomeExact
		}
		return OutcomeNone
	case OrderedField:
		switch {
		case g.num == t.num:
			return OutcomeExact
		case g.num < t.num:
			return OutcomeLower
		default:
			return OutcomeHigher
		}
	case SetField:
		return compareSets(g.tags, t.tags)
	}
	return OutcomeUnknown
}

// compareSets compares two tag lists as case-insensitive sets.
func compareSets(guess, target []string) Outcome {
	gs, ts := tagSet(guess), tagSet(target)
	shared := 0
	for k := range gs {
		if _, ok := ts[k]; ok {
			shared++
		}
	}
	switch {
	case shared == len(gs) && shared == len(ts):
		return OutcomeExact
	case shared > 0:
		return OutcomePartial
	default:
		return OutcomeNone
	}
}

func tagSet(tags []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

// Won reports whether the identity field of results is an exact match.
func Won(t Type, results []FieldResult) bool {
	for i, f := range Schema(t) {
		if f.Kind == IdentityField {
			return i < len(results) && results[i].Outcome == OutcomeExact
		}
	}
	return false
}

// Find returns the guess for candidateID if the session already holds one.
func (s *Session) Find(candidateID string) (*Guess, bool) {
	for i := range s.Guesses {
		if s.Guesses[i].CandidateID == candidateID {
			return &s.Guesses[i], true
		}
	}
	return nil, false
}

// Apply appends a scored guess and transitions the session.
//
// Validation rules:
//   - Session must not be terminal (SESSION_TERMINAL).
//   - Session must hold fewer than MaxGuesses guesses (ATTEMPT_LIMIT).
//
// State transitions:
//   - Identity exact → won.
//   - Else if the guess count reaches MaxGuesses → failed.
func (s *Session) Apply(candidateID string, payload Payload, results []FieldResult, now time.Time) (*Guess, error) {
	if s.Status.Terminal() {
		return nil, NewSessionTerminalError(s.GameType, s.Status)
	}
	limit := s.GameType.MaxGuesses()
	if len(s.Guesses) >= limit {
		return nil, NewAttemptLimitError(s.GameType, limit)
	}

	s.Guesses = append(s.Guesses, Guess{
		Seq:         len(s.Guesses) + 1,
		CandidateID: candidateID,
		Payload:     payload,
		Results:     results,
		CreatedAt:   now,
	})
	s.UpdatedAt = now

	switch {
	case Won(s.GameType, results):
		s.Status = StatusWon
	case len(s.Guesses) >= limit:
		s.Status = StatusFailed
	default:
		s.Status = StatusInProgress
	}
	return &s.Guesses[len(s.Guesses)-1], nil
}

// SortCandidates orders candidates by id so that pool selection does not
// depend on store iteration order.
func SortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}
