// Package rubric holds the evaluation rubric as data and derives totals and disciplinary recommendations from it.
package rubric

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/vigil/fs"
)

const defaultRubricPath = "rubric/rubric.yaml"

var (
	ErrInvalidRubric = errors.New("invalid rubric")

	defaultRubric *Rubric
	defaultOnce   sync.Once
)

// Option is one selectable outcome of a Category.
type Option struct {
	Points      float64 `yaml:"points" json:"points"`
	Description string  `yaml:"description" json:"description"`
}

// Category is one evaluated dimension. Options are ordered ascending by points, starting at 0.
type Category struct {
	ID          string   `yaml:"id" json:"id"`
	Label       string   `yaml:"label" json:"label"`
	Description string   `yaml:"description" json:"description"`
	Options     []Option `yaml:"options" json:"options"`
}

// Max returns the highest penalty a category can yield.
func (c Category) Max() float64 {
	if len(c.Options) == 0 {
		return 0
	}
	return c.Options[len(c.Options)-1].Points
}

func (c Category) HasOption(points float64) bool {
	for _, opt := range c.Options {
		if opt.Points == points {
			return true
		}
	}
	return false
}

// Option returns the option matching the given points.
func (c Category) Option(points float64) (Option, bool) {
	for _, opt := range c.Options {
		if opt.Points == points {
			return opt, true
		}
	}
	return Option{}, false
}

// Rubric is an immutable, versioned scoring table.
type Rubric struct {
	version    string
	categories []Category
	thresholds []Threshold
	index      map[string]int
}

type table struct {
	Version    string      `yaml:"version"`
	Categories []Category  `yaml:"categories"`
	Thresholds []Threshold `yaml:"thresholds"`
}

// Load decodes a YAML rubric table and validates it.
func Load(r io.Reader) (*Rubric, error) {
	var tbl table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tbl); err != nil {
		return nil, errors.Wrap(err, "decoding rubric")
	}
	return New(tbl.Version, tbl.Categories, tbl.Thresholds)
}

// New builds a Rubric from its parts, rejecting ambiguous or unordered tables.
func New(version string, categories []Category, thresholds []Threshold) (*Rubric, error) {
	if len(categories) == 0 {
		return nil, errors.Wrap(ErrInvalidRubric, "no categories")
	}

	rub := &Rubric{
		version:    version,
		categories: make([]Category, 0, len(categories)),
		thresholds: make([]Threshold, len(thresholds)),
		index:      make(map[string]int, len(categories)),
	}
	for _, cat := range categories {
		if err := validateCategory(cat); err != nil {
			return nil, err
		}
		if _, dup := rub.index[cat.ID]; dup {
			return nil, errors.Wrapf(ErrInvalidRubric, "duplicate category %q", cat.ID)
		}
		cat.Options = append([]Option(nil), cat.Options...)
		rub.index[cat.ID] = len(rub.categories)
		rub.categories = append(rub.categories, cat)
	}

	if err := validateThresholds(thresholds); err != nil {
		return nil, err
	}
	copy(rub.thresholds, thresholds)
	return rub, nil
}

func validateCategory(cat Category) error {
	if cat.ID == "" {
		return errors.Wrap(ErrInvalidRubric, "category without id")
	}
	if len(cat.Options) == 0 {
		return errors.Wrapf(ErrInvalidRubric, "category %q has no options", cat.ID)
	}
	if cat.Options[0].Points != 0 {
		return errors.Wrapf(ErrInvalidRubric, "category %q must start with a 0 points option", cat.ID)
	}
	for i := 1; i < len(cat.Options); i++ {
		prev, curr := cat.Options[i-1].Points, cat.Options[i].Points
		if curr == prev {
			return errors.Wrapf(ErrInvalidRubric, "category %q has duplicate option %v", cat.ID, curr)
		}
		if curr < prev {
			return errors.Wrapf(ErrInvalidRubric, "category %q options are not ascending", cat.ID)
		}
	}
	return nil
}

func validateThresholds(thresholds []Threshold) error {
	if len(thresholds) == 0 {
		return errors.Wrap(ErrInvalidRubric, "no thresholds")
	}
	if thresholds[0].MinPoints != 0 {
		return errors.Wrap(ErrInvalidRubric, "lowest threshold must start at 0")
	}
	seen := make(map[Tier]bool, len(thresholds))
	for i, th := range thresholds {
		if th.Tier == "" {
			return errors.Wrapf(ErrInvalidRubric, "threshold %d has no tier", i)
		}
		if seen[th.Tier] {
			return errors.Wrapf(ErrInvalidRubric, "duplicate tier %q", th.Tier)
		}
		seen[th.Tier] = true
		if i > 0 && th.MinPoints <= thresholds[i-1].MinPoints {
			return errors.Wrap(ErrInvalidRubric, "thresholds are not strictly ascending")
		}
	}
	return nil
}

// mustLoadEmbedded loads the embedded rubric at `path` and panics on failure.
func mustLoadEmbedded(path string) *Rubric {
	f, err := appfs.FS.Open(path)
	if err != nil {
		panic(fmt.Sprintf("rubric: opening %s: %v", path, err))
	}
	defer func() { _ = f.Close() }()

	rub, err := Load(f)
	if err != nil {
		panic(fmt.Sprintf("rubric: loading %s: %v", path, err))
	}
	return rub
}

// Default returns the embedded rubric. It is loaded once and shared; a Rubric is read-only.
func Default() *Rubric {
	defaultOnce.Do(func() {
		defaultRubric = mustLoadEmbedded(defaultRubricPath)
	})
	return defaultRubric
}

func (r *Rubric) Version() string { return r.version }

// Categories returns the categories in their fixed order.
func (r *Rubric) Categories() []Category {
	cats := make([]Category, len(r.categories))
	copy(cats, r.categories)
	return cats
}

func (r *Rubric) CategoryIDs() []string {
	ids := make([]string, len(r.categories))
	for i, cat := range r.categories {
		ids[i] = cat.ID
	}
	return ids
}

func (r *Rubric) Category(id string) (Category, bool) {
	i, ok := r.index[id]
	if !ok {
		return Category{}, false
	}
	return r.categories[i], true
}

// Thresholds returns the recommendation thresholds, ascending.
func (r *Rubric) Thresholds() []Threshold {
	ths := make([]Threshold, len(r.thresholds))
	copy(ths, r.thresholds)
	return ths
}

// MaxTotal is the worst possible total, i.e. every category at its maximum.
func (r *Rubric) MaxTotal() float64 {
	scores := make(map[string]float64, len(r.categories))
	for _, cat := range r.categories {
		scores[cat.ID] = cat.Max()
	}
	return TotalPoints(scores)
}
