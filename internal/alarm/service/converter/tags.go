package converter

import (
	"strings"

	"github.com/opseye/opseye/internal/alarm/model"
)

// associations are the org-level groupings extracted from vendor tags and
// denormalized onto each event for filtering.
type associations struct {
	Regions   []string
	Projects  []string
	Products  []string
	Customers []string
}

// extractAssociations pulls region/project/product/customer values out of
// vendor tags. Multi-valued keys use a strict two-digit ordinal suffix, e.g.
// projects_01, projects_02; projects_1 and projects_001 do not qualify and
// are ignored.
func extractAssociations(tags []model.Tag) associations {
	var a associations
	for _, t := range tags {
		key, ok := normalizeTagKey(t.Key)
		if !ok || t.Value == "" {
			continue
		}
		switch key {
		case "regions":
			a.Regions = append(a.Regions, t.Value)
		case "projects":
			a.Projects = append(a.Projects, t.Value)
		case "products":
			a.Products = append(a.Products, t.Value)
		case "customers":
			a.Customers = append(a.Customers, t.Value)
		}
	}
	return a
}

// normalizeTagKey strips an optional _NN ordinal suffix. It returns the base
// key and whether the key is well formed.
func normalizeTagKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	i := strings.LastIndex(key, "_")
	if i < 0 {
		return key, true
	}
	suffix := key[i+1:]
	if len(suffix) != 2 || !isDigits(suffix) {
		// An underscore with a non-ordinal suffix is a different key
		// entirely, not a variant of the base key.
		return key, true
	}
	base := key[:i]
	if base == "" {
		return "", false
	}
	return base, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func (a associations) applyTo(ev *model.Event) {
	ev.Regions = mergeUnique(ev.Regions, a.Regions)
	ev.Projects = mergeUnique(ev.Projects, a.Projects)
	ev.Products = mergeUnique(ev.Products, a.Products)
	ev.Customers = mergeUnique(ev.Customers, a.Customers)
}

func mergeUnique(dst, add []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range add {
		if !seen[v] {
			seen[v] = true
			dst = append(dst, v)
		}
	}
	return dst
}
