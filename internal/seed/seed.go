// Package seed holds the static list of global big-pharma names whose
// is_global_big_pharma fact is fixed before any source is consulted.
package seed

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultIdentifier is recorded as the source_url of seeded provenance.
const DefaultIdentifier = "seed_big_pharma.yml"

// Notes is recorded on seeded provenance.
const Notes = "Seeded Tier 1 list"

// Default is the built-in seed list.
var Default = []string{
	"Pfizer",
	"Roche",
	"Novartis",
	"Johnson & Johnson",
	"Merck & Co.",
	"Bristol Myers Squibb",
	"Sanofi",
	"AstraZeneca",
	"GSK",
	"Eli Lilly",
	"AbbVie",
	"Amgen",
	"Takeda",
	"Boehringer Ingelheim",
}

// Set is an immutable set of canonical company names. Matching is exact.
type Set struct {
	id    string
	names map[string]struct{}
}

// New builds a Set from names. Blank entries are ignored.
func New(identifier string, names []string) *Set {
	s := &Set{id: identifier, names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		s.names[n] = struct{}{}
	}
	return s
}

// NewDefault returns the built-in set.
func NewDefault() *Set {
	return New(DefaultIdentifier, Default)
}

// file is the YAML layout of a seed file.
type file struct {
	BigPharma []string `yaml:"big_pharma"`
}

// Load reads a seed file of the form:
//
//	big_pharma:
//	  - Pfizer
//	  - Roche
//
// The file's base name becomes the set identifier.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "seed: parse %s", path)
	}
	if len(f.BigPharma) == 0 {
		return nil, eris.Errorf("seed: %s has no big_pharma entries", path)
	}

	return New(filepath.Base(path), f.BigPharma), nil
}

// Contains reports whether name is an exact member of the set. A nil set is empty.
func (s *Set) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[name]
	return ok
}

// Identifier returns the seed list identifier recorded in provenance.
func (s *Set) Identifier() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Len returns the number of names.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns the members in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
