package targeting

import (
	"slices"
	"time"

	"promo-scheduler/internal/promotion"
)

// Index narrows a catalog to candidates by platform and language before the
// date window is checked. It is built once per configuration and read-only after.
type Index struct {
	rules []*promotion.Target // backing array; the maps reference positions in it

	incPlatform map[string][]int
	incLanguage map[string][]int

	agnosticPlatform []int
	agnosticLanguage []int
}

// NewIndex builds an index over rules; rules[i] belongs to catalog item i.
func NewIndex(rules []*promotion.Target) *Index {
	ix := &Index{
		rules:            rules,
		incPlatform:      map[string][]int{},
		incLanguage:      map[string][]int{},
		agnosticPlatform: []int{},
		agnosticLanguage: []int{},
	}
	for i, r := range rules {
		if r == nil || len(r.Platforms) == 0 {
			ix.agnosticPlatform = append(ix.agnosticPlatform, i)
		} else {
			for _, v := range r.Platforms {
				k := normalize(v)
				ix.incPlatform[k] = appendOnce(ix.incPlatform[k], i)
			}
		}
		if r == nil || len(r.Languages) == 0 {
			ix.agnosticLanguage = append(ix.agnosticLanguage, i)
		} else {
			for _, v := range r.Languages {
				k := normalize(v)
				ix.incLanguage[k] = appendOnce(ix.incLanguage[k], i)
			}
		}
	}
	return ix
}

// Eligible returns catalog positions matching the context, in catalog order.
func (ix *Index) Eligible(language, platform string, now time.Time) []int {
	if ix == nil || len(ix.rules) == 0 {
		return nil
	}
	language = normalize(language)
	platform = normalize(platform)

	cand := newSet(ix.incPlatform[platform], ix.agnosticPlatform)
	cand = cand.intersect(newSet(ix.incLanguage[language], ix.agnosticLanguage))

	// final verification covers the date window
	out := make([]int, 0, len(cand))
	for i := range cand {
		if Matches(ix.rules[i], language, platform, now) {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}

// Len returns the number of indexed items.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.rules)
}

func appendOnce(s []int, i int) []int {
	if n := len(s); n > 0 && s[n-1] == i {
		return s
	}
	return append(s, i)
}

type set map[int]struct{}

func newSet(lists ...[]int) set {
	s := set{}
	for _, sl := range lists {
		for _, v := range sl {
			s[v] = struct{}{}
		}
	}
	return s
}

func (s set) intersect(other set) set {
	res := set{}
	for k := range s {
		if _, ok := other[k]; ok {
			res[k] = struct{}{}
		}
	}
	return res
}
