package game

import (
	"encoding/json"
	"fmt"
)

// Payload is the per-variant snapshot of a guessed candidate, shown next to
// the field results. It is a closed sum: AnimeGuess | StudioGuess | BannerGuess.
type Payload interface {
	GameType() Type
	sealed()
}

// AnimeGuess is the payload of the title-guess variant.
type AnimeGuess struct {
	Title    string   `json:"title"`
	Format   string   `json:"format,omitempty"`
	Source   string   `json:"source,omitempty"`
	Season   string   `json:"season,omitempty"`
	Year     *int     `json:"year,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Episodes *int     `json:"episodes,omitempty"`
	Genres   []string `json:"genres,omitempty"`
	Themes   []string `json:"themes,omitempty"`
	Studios  []string `json:"studios,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

// StudioGuess is the payload of the studio variant.
type StudioGuess struct {
	Name      string   `json:"name"`
	Country   string   `json:"country,omitempty"`
	Year      *int     `json:"year,omitempty"`
	WorkCount int      `json:"workCount"`
	Genres    []string `json:"genres,omitempty"`
}

// BannerGuess is the payload of the image-reveal variant.
type BannerGuess struct {
	Title    string   `json:"title"`
	Format   string   `json:"format,omitempty"`
	Year     *int     `json:"year,omitempty"`
	Genres   []string `json:"genres,omitempty"`
	Studios  []string `json:"studios,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

func (AnimeGuess) GameType() Type  { return TypeAnime }
func (StudioGuess) GameType() Type { return TypeStudio }
func (BannerGuess) GameType() Type { return TypeBanner }

func (AnimeGuess) sealed()  {}
func (StudioGuess) sealed() {}
func (BannerGuess) sealed() {}

// NewPayload snapshots c for display under game type t.
func NewPayload(t Type, c *Candidate) (Payload, error) {
	switch t {
	case TypeAnime:
		return AnimeGuess{
			Title: c.Name, Format: c.Format, Source: c.Source, Season: c.Season,
			Year: c.Year, Score: c.Score, Episodes: c.Episodes,
			Genres: c.Genres, Themes: c.Themes, Studios: c.Studios, ImageURL: c.ImageURL,
		}, nil
	case TypeStudio:
		return StudioGuess{Name: c.Name, Country: c.Country, Year: c.Year, WorkCount: len(c.Works), Genres: c.Genres}, nil
	case TypeBanner:
		return BannerGuess{
			Title: c.Name, Format: c.Format, Year: c.Year,
			Genres: c.Genres, Studios: c.Studios, ImageURL: c.ImageURL,
		}, nil
	}
	return nil, fmt.Errorf("payload: unknown game type %q", t)
}

// envelope is the persisted form of a Payload.
type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload serializes p with its type tag.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.Marshal(envelope{Type: p.GameType(), Data: data})
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}
	var (
		p   Payload
		err error
	)
	switch env.Type {
	case TypeAnime:
		var v AnimeGuess
		err = json.Unmarshal(env.Data, &v)
		p = v
	case TypeStudio:
		var v StudioGuess
		err = json.Unmarshal(env.Data, &v)
		p = v
	case TypeBanner:
		var v BannerGuess
		err = json.Unmarshal(env.Data, &v)
		p = v
	default:
		return nil, fmt.Errorf("decode payload: unknown type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return p, nil
}

// MarshalJSON writes the payload in its tagged form.
func (g Guess) MarshalJSON() ([]byte, error) {
	type plain Guess
	out := struct {
		plain
		Payload json.RawMessage `json:"payload"`
	}{plain: plain(g), Payload: json.RawMessage("null")}
	if g.Payload != nil {
		raw, err := EncodePayload(g.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = raw
	}
	return json.Marshal(out)
}

func (g *Guess) UnmarshalJSON(b []byte) error {
	type plain Guess
	in := struct {
		*plain
		Payload json.RawMessage `json:"payload"`
	}{plain: (*plain)(g)}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	g.Payload = nil
	if len(in.Payload) == 0 || string(in.Payload) == "null" {
		return nil
	}
	p, err := DecodePayload(in.Payload)
	if err != nil {
		return err
	}
	g.Payload = p
	return nil
}
