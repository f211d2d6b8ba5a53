package content

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
)

// Category is a UI-facing content category.
type Category string

const (
	CategoryAll       Category = "all"
	CategoryAlerts    Category = "alerts"
	CategoryCirculars Category = "circulars"
	CategoryHomework  Category = "homework"
	CategoryMoments   Category = "moments"
)

var (
	Categories = []Category{CategoryAll, CategoryAlerts, CategoryCirculars, CategoryHomework, CategoryMoments}

	backendFilters = map[Category]string{
		CategoryAll:       "All",
		CategoryAlerts:    string(KindAlert),
		CategoryCirculars: string(KindCircular),
		CategoryHomework:  string(KindHomework),
		CategoryMoments:   string(KindMoment),
	}
)

// ParseCategory resolves a UI category name (case-insensitive; empty means all).
func ParseCategory(name string) (Category, error) {
	name = core.CleanString(name, true /* lower */)
	if name == "" {
		return CategoryAll, nil
	}
	cat := Category(name)
	if _, ok := backendFilters[cat]; !ok {
		err := errors.Errorf("unknown content category %q", name)
		return "", core.NewValidationError(err, core.FieldError{
			Field: "category",
			Error: "must be one of " + strings.Join(categoryNames(), ", "),
		})
	}
	return cat, nil
}

func categoryNames() []string {
	names := make([]string, 0, len(Categories))
	for _, c := range Categories {
		names = append(names, string(c))
	}
	return names
}

// Filter is the backend filter vocabulary for c.
func (c Category) Filter() string {
	return backendFilters[c]
}

func categoryOf(k Kind) (Category, bool) {
	switch k {
	case KindAlert:
		return CategoryAlerts, true
	case KindCircular:
		return CategoryCirculars, true
	case KindHomework:
		return CategoryHomework, true
	case KindMoment:
		return CategoryMoments, true
	}
	return "", false
}

// Bundle holds one user's content, each container sorted newest-first.
type Bundle struct {
	All       []Item `json:"all"`
	Alerts    []Item `json:"alerts"`
	Circulars []Item `json:"circulars"`
	Homework  []Item `json:"homework"`
	Moments   []Item `json:"moments"`
}

// NewBundle categorizes `items`, dropping duplicates.
func NewBundle(items []Item) Bundle {
	var b Bundle
	b.Merge(items)
	return b
}

func (b *Bundle) container(c Category) *[]Item {
	switch c {
	case CategoryAlerts:
		return &b.Alerts
	case CategoryCirculars:
		return &b.Circulars
	case CategoryHomework:
		return &b.Homework
	case CategoryMoments:
		return &b.Moments
	default:
		return &b.All
	}
}

// Category returns the container of c.
func (b Bundle) Category(c Category) []Item {
	return *b.container(c)
}

// Merge appends the items whose key is not present yet and re-sorts. It returns how many were added.
func (b *Bundle) Merge(items []Item) int {
	seen := make(map[string]struct{}, len(b.All)+len(items))
	for _, it := range b.All {
		seen[it.Key()] = struct{}{}
	}

	var added int
	for _, it := range items {
		key := it.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		b.All = append(b.All, it)
		if cat, ok := categoryOf(it.Kind); ok {
			c := b.container(cat)
			*c = append(*c, it)
		}
		added++
	}
	b.sort()
	return added
}

// Replace swaps the content of category c for `items`: the whole bundle for CategoryAll,
// otherwise only c's container (the items are merged into All).
func (b *Bundle) Replace(c Category, items []Item) {
	if c == CategoryAll {
		*b = NewBundle(items)
		return
	}

	fresh := make([]Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if cat, ok := categoryOf(it.Kind); !ok || cat != c {
			continue
		}
		if _, dup := seen[it.Key()]; dup {
			continue
		}
		seen[it.Key()] = struct{}{}
		fresh = append(fresh, it)
	}

	// drop the old c items from All, then merge the fresh ones back
	all := make([]Item, 0, len(b.All))
	for _, it := range b.All {
		if cat, ok := categoryOf(it.Kind); ok && cat == c {
			continue
		}
		all = append(all, it)
	}
	b.All = all
	*b.container(c) = nil
	b.Merge(fresh)
	if *b.container(c) == nil {
		*b.container(c) = []Item{}
	}
}

// Len is the number of distinct items.
func (b Bundle) Len() int {
	return len(b.All)
}

// Clone copies the containers (items are immutable values).
func (b Bundle) Clone() Bundle {
	cp := func(items []Item) []Item {
		out := make([]Item, len(items))
		copy(out, items)
		return out
	}
	return Bundle{
		All:       cp(b.All),
		Alerts:    cp(b.Alerts),
		Circulars: cp(b.Circulars),
		Homework:  cp(b.Homework),
		Moments:   cp(b.Moments),
	}
}

func (b *Bundle) sort() {
	for _, c := range Categories {
		sortNewestFirst(*b.container(c))
	}
}

func sortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
}
