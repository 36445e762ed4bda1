package targeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"promo-scheduler/internal/promotion"
)

func ts(t time.Time) *time.Time { return &t }

func TestMatches(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name     string
		rule     *promotion.Target
		language string
		platform string
		want     bool
	}{
		{"no target", nil, "en", "ios", true},
		{"empty target", &promotion.Target{}, "en", "ios", true},
		{"platform match", &promotion.Target{Platforms: []string{"ios"}}, "en", "ios", true},
		{"platform miss", &promotion.Target{Platforms: []string{"ios"}}, "en", "android", false},
		{"platform case-insensitive", &promotion.Target{Platforms: []string{"iOS"}}, "en", "ios", true},
		{"language miss", &promotion.Target{Languages: []string{"fr"}}, "en", "ios", false},
		{"language in list", &promotion.Target{Languages: []string{"en", "es"}}, "es", "ios", true},
		{"not started", &promotion.Target{StartDate: ts(now.Add(day))}, "en", "ios", false},
		{"started", &promotion.Target{StartDate: ts(now.Add(-day))}, "en", "ios", true},
		{"start equals now", &promotion.Target{StartDate: ts(now)}, "en", "ios", true},
		{"expired", &promotion.Target{EndDate: ts(now.Add(-day))}, "en", "ios", false},
		{"end equals now", &promotion.Target{EndDate: ts(now)}, "en", "ios", true},
		{
			name: "window active",
			rule: &promotion.Target{StartDate: ts(now.Add(-day)), EndDate: ts(now.Add(day))},
			language: "en", platform: "ios", want: true,
		},
		{
			name: "all rules pass",
			rule: &promotion.Target{
				Platforms: []string{"ios"},
				Languages: []string{"en"},
				StartDate: ts(now.Add(-day)),
				EndDate:   ts(now.Add(day)),
			},
			language: "en", platform: "ios", want: true,
		},
		{
			name: "one failing rule rejects",
			rule: &promotion.Target{
				Platforms: []string{"ios"},
				Languages: []string{"en"},
				StartDate: ts(now.Add(-day)),
				EndDate:   ts(now.Add(day)),
			},
			language: "en", platform: "android", want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.rule, tt.language, tt.platform, now))
		})
	}
}

func TestIndex_Eligible(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rules := []*promotion.Target{
		nil,                                        // 0: no target
		{Platforms: []string{"ios"}},               // 1
		{Platforms: []string{"android"}},           // 2
		{Languages: []string{"fr"}},                // 3
		{Languages: []string{"en", "es"}},          // 4
		{StartDate: ts(now.Add(time.Hour))},        // 5: future
		{EndDate: ts(now.Add(-time.Hour))},         // 6: past
		{Platforms: []string{"ios", "IOS"}},        // 7: duplicate value
		{Platforms: []string{"ios"}, Languages: []string{"en"}}, // 8
	}
	ix := NewIndex(rules)

	tests := []struct {
		name     string
		language string
		platform string
		want     []int
	}{
		{"en ios", "en", "ios", []int{0, 1, 4, 7, 8}},
		{"en android", "en", "android", []int{0, 2, 4}},
		{"fr ios", "fr", "ios", []int{0, 1, 3, 7}},
		{"upper-case context", "EN", " IOS ", []int{0, 1, 4, 7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.Eligible(tt.language, tt.platform, now)
			assert.Equal(t, tt.want, got)
			for _, i := range got {
				assert.True(t, Matches(rules[i], tt.language, tt.platform, now))
			}
		})
	}
}

func TestIndex_Empty(t *testing.T) {
	var nilIndex *Index
	assert.Empty(t, nilIndex.Eligible("en", "ios", time.Now()))
	assert.Equal(t, 0, nilIndex.Len())
	assert.Empty(t, NewIndex(nil).Eligible("en", "ios", time.Now()))
}
