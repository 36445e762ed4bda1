package targeting

import (
	"strings"
	"time"

	"promo-scheduler/internal/promotion"
)

// Matches reports whether a promotion carrying rule is eligible for the
// given device context. A nil rule always matches.
func Matches(rule *promotion.Target, language, platform string, now time.Time) bool {
	if rule == nil {
		return true
	}
	if !allows(rule.Platforms, platform) {
		return false
	}
	if !allows(rule.Languages, language) {
		return false
	}
	if rule.StartDate != nil && now.Before(*rule.StartDate) {
		return false
	}
	if rule.EndDate != nil && now.After(*rule.EndDate) {
		return false
	}
	return true
}

// allows treats an empty list as "all values".
func allows(values []string, val string) bool {
	if len(values) == 0 {
		return true
	}
	val = normalize(val)
	for _, v := range values {
		if normalize(v) == val {
			return true
		}
	}
	return false
}

func normalize(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
