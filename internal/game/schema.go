package game

import "strings"

// FieldKind selects the comparison rule of a schema field.
type FieldKind int

const (
	IdentityField FieldKind = iota // win condition, compared by candidate id
	CategoryField                  // scalar string, equal or not
	OrderedField                   // number, directional
	SetField                       // unordered tags, exact/partial/none
)

// value is an extracted attribute. ok is false when the source value is absent.
type value struct {
	ok   bool
	text string
	num  float64
	tags []string
}

// Field is one column of a game type's display schema.
type Field struct {
	Name    string
	Kind    FieldKind
	extract func(c *Candidate) value
}

func identity(c *Candidate) value { return value{ok: true, text: c.ID} }

func text(get func(c *Candidate) string) func(c *Candidate) value {
	return func(c *Candidate) value {
		s := strings.TrimSpace(get(c))
		return value{ok: s != "", text: s}
	}
}

func intPtr(get func(c *Candidate) *int) func(c *Candidate) value {
	return func(c *Candidate) value {
		p := get(c)
		if p == nil {
			return value{}
		}
		return value{ok: true, num: float64(*p)}
	}
}

func tags(get func(c *Candidate) []string) func(c *Candidate) value {
	return func(c *Candidate) value {
		t := get(c)
		return value{ok: len(tagSet(t)) > 0, tags: t}
	}
}

var (
	animeSchema = []Field{
		{Name: "title", Kind: IdentityField, extract: identity},
		{Name: "format", Kind: CategoryField, extract: text(func(c *Candidate) string { return c.Format })},
		{Name: "source", Kind: CategoryField, extract: text(func(c *Candidate) string { return c.Source })},
		{Name: "season", Kind: CategoryField, extract: text(func(c *Candidate) string { return c.Season })},
		{Name: "year", Kind: OrderedField, extract: intPtr(func(c *Candidate) *int { return c.Year })},
		{Name: "score", Kind: OrderedField, extract: func(c *Candidate) value {
			if c.Score == nil {
				return value{}
			}
			return value{ok: true, num: *c.Score}
		}},
		{Name: "episodes", Kind: OrderedField, extract: intPtr(func(c *Candidate) *int { return c.Episodes })},
		{Name: "genres", Kind: SetField, extract: tags(func(c *Candidate) []string { return c.Genres })},
		{Name: "themes", Kind: SetField, extract: tags(func(c *Candidate) []string { return c.Themes })},
		{Name: "studios", Kind: SetField, extract: tags(func(c *Candidate) []string { return c.Studios })},
	}

	studioSchema = []Field{
		{Name: "name", Kind: IdentityField, extract: identity},
		{Name: "country", Kind: CategoryField, extract: text(func(c *Candidate) string { return c.Country })},
		{Name: "year", Kind: OrderedField, extract: intPtr(func(c *Candidate) *int { return c.Year })},
		{Name: "works", Kind: OrderedField, extract: func(c *Candidate) value {
			if len(c.Works) == 0 {
				return value{}
			}
			return value{ok: true, num: float64(len(c.Works))}
		}},
		{Name: "genres", Kind: SetField, extract: tags(func(c *Candidate) []string { return c.Genres })},
	}

	bannerSchema = []Field{
		{Name: "title", Kind: IdentityField, extract: identity},
		{Name: "format", Kind: CategoryField, extract: text(func(c *Candidate) string { return c.Format })},
		{Name: "year", Kind: OrderedField, extract: intPtr(func(c *Candidate) *int { return c.Year })},
		{Name: "genres", Kind: SetField, extract: tags(func(c *Candidate) []string { return c.Genres })},
		{Name: "studios", Kind: SetField, extract: tags(func(c *Candidate) []string { return c.Studios })},
	}
)

// Schema returns the ordered display schema of t, or nil for an unknown type.
func Schema(t Type) []Field {
	switch t {
	case TypeAnime:
		return animeSchema
	case TypeStudio:
		return studioSchema
	case TypeBanner:
		return bannerSchema
	}
	return nil
}
