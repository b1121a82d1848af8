// internal/game/types.go
//
// Core type definitions for the daily puzzle engine.
// Defines:
//   - Type: the puzzle variant (anime title, studio, banner image).
//   - Outcome/FieldResult: per-field result of a guess.
//   - Candidate: a catalog entity that can be guessed or be the day's target.
//   - Session/Guess/Stats: per-user daily play state and rolling aggregates.

package game

import "time"

// Type identifies a puzzle variant. Each variant has its own candidate pool,
// field schema and attempt limit.
type Type string

const (
	TypeAnime  Type = "anime"  // title-guess (wordle variant)
	TypeStudio Type = "studio" // studio-guess
	TypeBanner Type = "banner" // image-reveal
)

// Types lists every supported variant in display order.
var Types = []Type{TypeAnime, TypeStudio, TypeBanner}

// ParseType maps a slug to a Type.
func ParseType(s string) (Type, bool) {
	for _, t := range Types {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// MaxGuesses is the attempt limit of the variant.
func (t Type) MaxGuesses() int {
	switch t {
	case TypeAnime:
		return 16
	case TypeStudio:
		return 5
	case TypeBanner:
		return 6
	}
	return 0
}

// CandidateKind is the kind of catalog entity the variant is played with.
func (t Type) CandidateKind() Kind {
	if t == TypeStudio {
		return KindStudio
	}
	return KindAnime
}

// Kind is the catalog entity kind.
type Kind string

const (
	KindAnime  Kind = "anime"
	KindStudio Kind = "studio"
)

// Outcome is the evaluation result for a single field of a guess.
//   - "exact":   values are equal.
//   - "partial": tag sets intersect but differ.
//   - "none":    values differ (disjoint sets for tag fields).
//   - "higher":  the guessed value is above the target's.
//   - "lower":   the guessed value is below the target's.
//   - "unknown": a source value is missing on either side.
type Outcome string

const (
	OutcomeExact   Outcome = "exact"
	OutcomePartial Outcome = "partial"
	OutcomeNone    Outcome = "none"
	OutcomeHigher  Outcome = "higher"
	OutcomeLower   Outcome = "lower"
	OutcomeUnknown Outcome = "unknown"
)

// FieldResult pairs a schema field with its outcome.
type FieldResult struct {
	Field   string  `json:"field"`
	Outcome Outcome `json:"outcome"`
}

// Work is one title in a studio's roll-up.
type Work struct {
	ID             string `json:"id" yaml:"id"`
	Title          string `json:"title" yaml:"title"`
	PopularityRank int    `json:"popularityRank" yaml:"popularity_rank"`
	Year           int    `json:"year,omitempty" yaml:"year"`
}

// Candidate is a catalog entity. Optional numeric attributes are pointers so
// that an absent value evaluates to OutcomeUnknown rather than to zero.
type Candidate struct {
	ID             string   `json:"id"`
	Kind           Kind     `json:"kind"`
	Name           string   `json:"name"`
	Format         string   `json:"format,omitempty"`
	Source         string   `json:"source,omitempty"`
	Season         string   `json:"season,omitempty"`
	Country        string   `json:"country,omitempty"`
	Year           *int     `json:"year,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	Episodes       *int     `json:"episodes,omitempty"`
	PopularityRank int      `json:"popularityRank"` // 1 = most popular, 0 = unknown
	Genres         []string `json:"genres,omitempty"`
	Themes         []string `json:"themes,omitempty"`
	Studios        []string `json:"studios,omitempty"`
	Description    string   `json:"description,omitempty"`
	Characters     []string `json:"characters,omitempty"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	BannerURL      string   `json:"bannerUrl,omitempty"`
	Works          []Work   `json:"works,omitempty"`
}

// Status is the lifecycle state of a daily session.
type Status string

const (
	StatusNotStarted Status = "not_started" // view only; never persisted
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further guesses are accepted.
func (s Status) Terminal() bool { return s == StatusWon || s == StatusFailed }

// Guess is one submitted candidate with its evaluation. Owned by its Session.
type Guess struct {
	Seq         int           `json:"seq"`
	CandidateID string        `json:"candidateId"`
	Payload     Payload       `json:"payload"`
	Results     []FieldResult `json:"results"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Session holds one user's play for one game type on one calendar day.
type Session struct {
	ID        string
	UserID    string
	GameType  Type
	Date      string // YYYY-MM-DD in the canonical timezone
	Status    Status
	Guesses   []Guess
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats is the per-user, per-game-type rolling aggregate.
type Stats struct {
	UserID     string     `json:"userId"`
	GameType   Type       `json:"gameType"`
	Played     int        `json:"played"`
	Wins       int        `json:"wins"`
	TotalTries int        `json:"totalTries"`
	LastWonAt  *time.Time `json:"lastWonAt,omitempty"`
}
