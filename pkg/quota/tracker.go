package quota

import (
	"sync"
	"time"

	"igevents/pkg/logger"
)

const (
	// thresholdRatio keeps usage at 90% of the official provider limits
	thresholdRatio = 0.9

	// waitBuffer is added to every computed wait before sleeping
	waitBuffer = time.Second

	// maxAdmitIterations bounds the wait-recheck loop under sustained overload
	maxAdmitIterations = 60

	// actualUsageWindow is how recent a speculative entry must be for
	// RecordActual to replace it
	actualUsageWindow = 5 * time.Second

	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// entry is one speculative or corrected usage record
type entry struct {
	at     time.Time
	tokens int
}

// window is a time-ordered queue of usage entries
type window struct {
	span    time.Duration
	entries []entry
}

// purge drops entries that have fallen out of the window
func (w *window) purge(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.entries) && w.entries[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.entries = append(w.entries[:0], w.entries[i:]...)
	}
}

// tokens sums the token counts of all live entries
func (w *window) tokens() int {
	total := 0
	for _, e := range w.entries {
		total += e.tokens
	}
	return total
}

// Tracker tracks rolling-window usage against requests-per-minute,
// requests-per-day, and tokens-per-minute thresholds and decides whether an
// API call may proceed, must wait, or must be skipped. It is safe for
// concurrent use; admission decisions are serialized under a mutex.
type Tracker struct {
	mu sync.Mutex

	rpmLimit int
	rpdLimit int
	tpmLimit int

	rpmThreshold int
	rpdThreshold int
	tpmThreshold int

	perMinute  window
	perDay     window
	tokensUsed window

	log logger.Logger

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// WindowStats describes one window's usage for reporting
type WindowStats struct {
	Current   int
	Limit     int
	Threshold int
}

// Percent reports current usage as a percentage of the enforced threshold
func (w WindowStats) Percent() float64 {
	if w.Threshold == 0 {
		return 0
	}
	return float64(w.Current) / float64(w.Threshold) * 100
}

// Stats holds usage across all three windows
type Stats struct {
	RequestsPerMinute WindowStats
	RequestsPerDay    WindowStats
	TokensPerMinute   WindowStats
}

// NewTracker creates a tracker enforcing 90% of the given official limits
func NewTracker(rpmLimit, rpdLimit, tpmLimit int, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.GetLogger()
	}
	t := &Tracker{
		perMinute:  window{span: minuteWindow},
		perDay:     window{span: dayWindow},
		tokensUsed: window{span: minuteWindow},
		log:        log,
		now:        time.Now,
		sleep:      time.Sleep,
	}
	t.setLimits(rpmLimit, rpdLimit, tpmLimit)
	return t
}

func (t *Tracker) setLimits(rpm, rpd, tpm int) {
	if rpm > 0 {
		t.rpmLimit = rpm
		t.rpmThreshold = threshold(rpm)
	}
	if rpd > 0 {
		t.rpdLimit = rpd
		t.rpdThreshold = threshold(rpd)
	}
	if tpm > 0 {
		t.tpmLimit = tpm
		t.tpmThreshold = threshold(tpm)
	}
}

// threshold computes 90% of an official limit, floored at 1 so tiny limits
// still admit one call per window instead of refusing everything.
func threshold(limit int) int {
	th := int(float64(limit) * thresholdRatio)
	if th < 1 {
		th = 1
	}
	return th
}

// UpdateLimits changes the official limits at runtime and recomputes the
// 90% thresholds. Zero values leave the corresponding limit unchanged.
func (t *Tracker) UpdateLimits(rpmLimit, rpdLimit, tpmLimit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLimits(rpmLimit, rpdLimit, tpmLimit)
	t.log.InfoWithFields("rate limits updated", map[string]interface{}{
		"rpm_threshold": t.rpmThreshold,
		"rpd_threshold": t.rpdThreshold,
		"tpm_threshold": t.tpmThreshold,
	})
}

// Admit decides whether a call with the given estimated token cost may
// proceed. When a per-minute window is saturated it sleeps until enough
// entries expire and re-evaluates, up to a bounded number of iterations.
// When the daily threshold is reached it returns false immediately; waiting
// for a day to roll over is impractical, the caller must skip the request.
// On admission the estimate is recorded in all windows before the network
// call so concurrent admission checks see the reservation.
func (t *Tracker) Admit(estimatedTokens int) bool {
	for i := 0; i < maxAdmitIterations; i++ {
		admitted, wait, daily := t.check(estimatedTokens)
		if admitted {
			return true
		}
		if daily {
			t.log.Warn("daily request threshold reached, skipping request")
			return false
		}
		if wait <= 0 {
			continue
		}
		t.log.WarnWithFields("rate limit window saturated, waiting", map[string]interface{}{
			"wait": wait + waitBuffer,
		})
		t.sleep(wait + waitBuffer)
	}
	t.log.Error("admission retries exhausted under sustained overload")
	return false
}

// check performs one admission evaluation under the lock. It returns either
// admitted=true (and the reservation has been recorded), or the wait needed
// before the next evaluation, or daily=true for a terminal refusal.
func (t *Tracker) check(estimatedTokens int) (admitted bool, wait time.Duration, daily bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.perMinute.purge(now)
	t.perDay.purge(now)
	t.tokensUsed.purge(now)

	rpm := len(t.perMinute.entries)
	rpd := len(t.perDay.entries)
	tpm := t.tokensUsed.tokens()

	overRPD := rpd >= t.rpdThreshold
	if overRPD {
		return false, 0, true
	}

	overRPM := rpm >= t.rpmThreshold
	overTPM := tpm+estimatedTokens >= t.tpmThreshold

	if !overRPM && !overTPM {
		e := entry{at: now, tokens: estimatedTokens}
		t.perMinute.entries = append(t.perMinute.entries, e)
		t.perDay.entries = append(t.perDay.entries, e)
		t.tokensUsed.entries = append(t.tokensUsed.entries, e)
		return true, 0, false
	}

	if overRPM && len(t.perMinute.entries) > 0 {
		oldest := t.perMinute.entries[0].at
		if w := oldest.Add(minuteWindow).Sub(now); w > wait {
			wait = w
		}
	}

	if overTPM && len(t.tokensUsed.entries) > 0 {
		// Walk the queue in insertion order until enough tokens would
		// free up to fit the new estimate.
		toFree := tpm + estimatedTokens - t.tpmThreshold + 1
		running := 0
		for _, e := range t.tokensUsed.entries {
			running += e.tokens
			if running >= toFree {
				if w := e.at.Add(minuteWindow).Sub(now); w > wait {
					wait = w
				}
				break
			}
		}
	}

	return false, wait, false
}

// RecordActual replaces the most recent speculative entry with the measured
// token consumption from a completed response. Only entries recorded within
// the last few seconds are corrected, avoiding systematic overestimation
// without touching unrelated history.
func (t *Tracker) RecordActual(actualTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, w := range []*window{&t.perMinute, &t.perDay, &t.tokensUsed} {
		if n := len(w.entries); n > 0 {
			last := &w.entries[n-1]
			if now.Sub(last.at) < actualUsageWindow {
				last.tokens = actualTokens
			}
		}
	}
}

// Stats reports current usage across all windows
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.perMinute.purge(now)
	t.perDay.purge(now)
	t.tokensUsed.purge(now)

	return Stats{
		RequestsPerMinute: WindowStats{
			Current:   len(t.perMinute.entries),
			Limit:     t.rpmLimit,
			Threshold: t.rpmThreshold,
		},
		RequestsPerDay: WindowStats{
			Current:   len(t.perDay.entries),
			Limit:     t.rpdLimit,
			Threshold: t.rpdThreshold,
		},
		TokensPerMinute: WindowStats{
			Current:   t.tokensUsed.tokens(),
			Limit:     t.tpmLimit,
			Threshold: t.tpmThreshold,
		},
	}
}

// Reset clears all usage tracking. Intended for tests and manual resets.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perMinute.entries = nil
	t.perDay.entries = nil
	t.tokensUsed.entries = nil
}
