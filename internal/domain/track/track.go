// Package track contains the track and daily-content domain model for the
// Equilibrio progression engine. Tracks are multi-day structured programs;
// daily content is authored externally and read-only to the engine.
package track

import (
	"fmt"
	"strings"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Slug identifies a track (e.g., "equilibrio", "reinicio").
type Slug string

// IsValid checks that the slug is a short lowercase identifier.
func (s Slug) IsValid() bool {
	str := string(s)
	if len(str) < 2 || len(str) > 40 {
		return false
	}
	for _, r := range str {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// String returns the string form of the slug.
func (s Slug) String() string {
	return string(s)
}

// ParseSlug normalizes and validates a raw slug string.
func ParseSlug(raw string) (Slug, error) {
	s := Slug(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.NewDomainError("track", "ParseSlug", shared.ErrInvalidInput,
			fmt.Sprintf("invalid track slug %q", raw))
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACK DEFINITION
// ══════════════════════════════════════════════════════════════════════════════

// Definition is the immutable configuration of a track.
type Definition struct {
	// Slug uniquely identifies the track.
	Slug Slug

	// Title is the display name of the track.
	Title string

	// DurationDays is the program length (7, 21 or 40 in production).
	DurationDays int

	// LevelPointQuantum is the number of points per level on this track.
	LevelPointQuantum int
}

// IsValid checks the definition invariants.
func (d Definition) IsValid() bool {
	return d.Slug.IsValid() && d.DurationDays >= 1 && d.LevelPointQuantum >= 1
}

// ContainsDay reports whether day falls within [1, DurationDays].
func (d Definition) ContainsDay(day int) bool {
	return day >= 1 && day <= d.DurationDays
}

// CompletedDay is the sentinel current_day value meaning "track finished".
func (d Definition) CompletedDay() int {
	return d.DurationDays + 1
}

// ErrUnknownTrack is returned when a slug does not match any defined track.
var ErrUnknownTrack = shared.NewDomainError("track", "Lookup", shared.ErrNotFound, "unknown track")

// Catalog is an in-memory, immutable set of track definitions.
type Catalog struct {
	bySlug map[Slug]Definition
}

// NewCatalog builds a catalog from the given definitions.
func NewCatalog(defs []Definition) (*Catalog, error) {
	bySlug := make(map[Slug]Definition, len(defs))
	for _, d := range defs {
		if !d.IsValid() {
			return nil, shared.NewDomainError("track", "NewCatalog", shared.ErrInvalidInput,
				fmt.Sprintf("invalid track definition %q", d.Slug))
		}
		if _, dup := bySlug[d.Slug]; dup {
			return nil, shared.NewDomainError("track", "NewCatalog", shared.ErrAlreadyExists,
				fmt.Sprintf("duplicate track slug %q", d.Slug))
		}
		bySlug[d.Slug] = d
	}
	return &Catalog{bySlug: bySlug}, nil
}

// Get returns the definition for a slug, or ErrUnknownTrack.
func (c *Catalog) Get(slug Slug) (Definition, error) {
	def, ok := c.bySlug[slug]
	if !ok {
		return Definition{}, ErrUnknownTrack
	}
	return def, nil
}

// Slugs returns all defined slugs.
func (c *Catalog) Slugs() []Slug {
	slugs := make([]Slug, 0, len(c.bySlug))
	for s := range c.bySlug {
		slugs = append(slugs, s)
	}
	return slugs
}

// DefaultDefinitions returns the production track set.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Slug: "reinicio", Title: "Reinicio", DurationDays: 7, LevelPointQuantum: 100},
		{Slug: "equilibrio", Title: "Equilibrio", DurationDays: 21, LevelPointQuantum: 100},
		{Slug: "transformacion", Title: "Transformación", DurationDays: 40, LevelPointQuantum: 100},
	}
}
