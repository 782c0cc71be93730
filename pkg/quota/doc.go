// Package quota provides admission control for outbound inference API calls
// under multi-window provider limits.
//
// A Tracker maintains three rolling windows - requests per minute, requests
// per day, and tokens per minute - and admits, delays, or refuses calls so
// that usage stays below 90% of the official limits. Usage is recorded
// speculatively before each call using the Estimator's conservative token
// estimate, then corrected with the measured consumption once the response
// arrives.
//
// Basic usage:
//
//	tracker := quota.NewTracker(1000, 500000, 300000, log)
//	est := quota.Estimator{}.Estimate(texts, len(images))
//	if !tracker.Admit(est) {
//		// daily quota exhausted, skip this request
//		return nil
//	}
//	resp := callProvider(...)
//	tracker.RecordActual(resp.Usage.TotalTokens)
package quota
