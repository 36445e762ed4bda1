package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// ResetPolicy decides when Configure clears display counters.
type ResetPolicy int

const (
	// ResetByDate clears a counter horizon when the configuration's reset
	// marker for it is later than the last local reset of that horizon.
	ResetByDate ResetPolicy = iota
	// ResetByContent clears the balancing counters whenever the decoded
	// catalog differs from the previous one. Reset markers are ignored.
	ResetByContent
)

func (p ResetPolicy) String() string {
	switch p {
	case ResetByDate:
		return "date"
	case ResetByContent:
		return "content"
	default:
		return fmt.Sprintf("ResetPolicy(%d)", int(p))
	}
}

// ParseResetPolicy accepts "date" or "content"; empty means date.
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "date":
		return ResetByDate, nil
	case "content", "hash":
		return ResetByContent, nil
	default:
		return 0, fmt.Errorf("unknown reset policy %q", s)
	}
}

type Option func(*Scheduler)

func WithLanguage(lang string) Option { return func(s *Scheduler) { s.language = lang } }

func WithPlatform(platform string) Option { return func(s *Scheduler) { s.platform = platform } }

func WithResetPolicy(p ResetPolicy) Option { return func(s *Scheduler) { s.policy = p } }

// WithClock replaces time.Now for targeting windows and reset bookkeeping.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// WithResetState seeds the whole reset bookkeeping, typically with the state
// restored from a StateStore.
func WithResetState(st ResetState) Option {
	return func(s *Scheduler) {
		s.lastBalancingReset = st.LastBalancingReset
		s.lastCumulativeReset = st.LastCumulativeReset
		s.configHash, s.hasConfigHash = st.ConfigHash, st.HasConfigHash
	}
}

// WithStateStore persists the reset bookkeeping after every reset. A nil
// store disables persistence.
func WithStateStore(st StateStore) Option { return func(s *Scheduler) { s.state = st } }

// WithLastResets seeds the reset bookkeeping, e.g. with values saved by a
// previous session alongside durable counters.
func WithLastResets(balancing, cumulative time.Time) Option {
	return func(s *Scheduler) {
		s.lastBalancingReset = balancing
		s.lastCumulativeReset = cumulative
	}
}
