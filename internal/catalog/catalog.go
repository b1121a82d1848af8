// internal/catalog/catalog.go
//
// Candidate catalog loading for the puzzle engine.
//
// Responsibilities:
//   - Parse the YAML catalog (anime entries + studios) into game.Candidate values.
//   - Roll studios up from the anime that list them: works, genres, founding
//     year (falling back to the earliest work) and best popularity rank.
//   - Sanitize hint descriptions to plain text.
//   - Seed a CandidateRepository.
//
// Source selection (Load):
//  1. CATALOG_FILE set → read that file.
//  2. Otherwise → the catalog embedded in assets/.

package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/robalobadob/dailypuzzle/assets"
	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/store"
)

// File is the on-disk catalog document.
type File struct {
	Anime   []AnimeEntry  `yaml:"anime"`
	Studios []StudioEntry `yaml:"studios"`
}

// AnimeEntry is one title of the catalog.
type AnimeEntry struct {
	ID             string   `yaml:"id"`
	Title          string   `yaml:"title"`
	Format         string   `yaml:"format"`
	Source         string   `yaml:"source"`
	Season         string   `yaml:"season"`
	Year           *int     `yaml:"year"`
	Score          *float64 `yaml:"score"`
	Episodes       *int     `yaml:"episodes"`
	PopularityRank int      `yaml:"popularity_rank"`
	Genres         []string `yaml:"genres"`
	Themes         []string `yaml:"themes"`
	Studios        []string `yaml:"studios"`
	Description    string   `yaml:"description"`
	Characters     []string `yaml:"characters"`
	ImageURL       string   `yaml:"image_url"`
	BannerURL      string   `yaml:"banner_url"`
}

// StudioEntry is one studio of the catalog; the rest is derived.
type StudioEntry struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Country string `yaml:"country"`
	Founded *int   `yaml:"founded"`
}

// Load reads path, or the embedded default catalog when path is empty.
func Load(path string) ([]game.Candidate, error) {
	var (
		raw []byte
		err error
	)
	if path == "" {
		raw, err = assets.DefaultCatalog()
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a catalog document and builds candidates.
func Parse(raw []byte) ([]game.Candidate, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	return f.Candidates()
}

// Candidates validates f and converts it, anime first then studios.
func (f *File) Candidates() ([]game.Candidate, error) {
	seen := make(map[string]struct{}, len(f.Anime)+len(f.Studios))
	claim := func(id, name string) error {
		id = strings.TrimSpace(id)
		if id == "" || strings.TrimSpace(name) == "" {
			return fmt.Errorf("catalog: entry (id=%q, name=%q) needs both", id, name)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("catalog: duplicate id %q", id)
		}
		seen[id] = struct{}{}
		return nil
	}

	out := make([]game.Candidate, 0, len(f.Anime)+len(f.Studios))
	for _, a := range f.Anime {
		if err := claim(a.ID, a.Title); err != nil {
			return nil, err
		}
		out = append(out, game.Candidate{
			ID:             a.ID,
			Kind:           game.KindAnime,
			Name:           strings.TrimSpace(a.Title),
			Format:         a.Format,
			Source:         a.Source,
			Season:         a.Season,
			Year:           a.Year,
			Score:          a.Score,
			Episodes:       a.Episodes,
			PopularityRank: a.PopularityRank,
			Genres:         a.Genres,
			Themes:         a.Themes,
			Studios:        a.Studios,
			Description:    Sanitize(a.Description),
			Characters:     a.Characters,
			ImageURL:       a.ImageURL,
			BannerURL:      a.BannerURL,
		})
	}

	for _, s := range f.Studios {
		if err := claim(s.ID, s.Name); err != nil {
			return nil, err
		}
		out = append(out, rollUpStudio(s, f.Anime))
	}
	return out, nil
}

// rollUpStudio derives the evaluated attributes of a studio from its works.
func rollUpStudio(s StudioEntry, anime []AnimeEntry) game.Candidate {
	c := game.Candidate{
		ID:      s.ID,
		Kind:    game.KindStudio,
		Name:    strings.TrimSpace(s.Name),
		Country: s.Country,
		Year:    s.Founded,
	}
	genres := map[string]string{}
	earliest := 0
	for _, a := range anime {
		if !containsFold(a.Studios, c.Name) {
			continue
		}
		w := game.Work{ID: a.ID, Title: a.Title, PopularityRank: a.PopularityRank}
		if a.Year != nil {
			w.Year = *a.Year
			if earliest == 0 || w.Year < earliest {
				earliest = w.Year
			}
		}
		c.Works = append(c.Works, w)
		if w.PopularityRank > 0 && (c.PopularityRank == 0 || w.PopularityRank < c.PopularityRank) {
			c.PopularityRank = w.PopularityRank
		}
		for _, g := range a.Genres {
			if k := strings.ToLower(g); genres[k] == "" {
				genres[k] = g
			}
		}
	}
	if c.Year == nil && earliest > 0 {
		c.Year = &earliest
	}
	for _, g := range genres {
		c.Genres = append(c.Genres, g)
	}
	sort.Strings(c.Genres)
	sort.SliceStable(c.Works, func(i, j int) bool {
		a, b := c.Works[i].PopularityRank, c.Works[j].PopularityRank
		if (a > 0) != (b > 0) {
			return a > 0
		}
		return a < b
	})
	return c
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

// Seed upserts cs into repo.
func Seed(ctx context.Context, repo store.CandidateRepository, cs []game.Candidate) error {
	if err := repo.UpsertCandidates(ctx, cs); err != nil {
		return err
	}
	var anime, studios int
	for _, c := range cs {
		if c.Kind == game.KindStudio {
			studios++
		} else {
			anime++
		}
	}
	log.Info().Int("anime", anime).Int("studios", studios).Msg("catalog seeded")
	return nil
}
