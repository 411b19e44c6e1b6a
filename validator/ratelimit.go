package validator

import "time"

/* window is a sliding one-minute rate limit window.
 * It keeps a fixed-size slice of request timestamps and drops the ones that
 * have aged out before deciding whether a new request fits under the cap.
 */
type window struct {
	timestamps []time.Time
	limit      int
}

func newWindow(limit int) *window {
	return &window{
		timestamps: make([]time.Time, 0, limit),
		limit:      limit,
	}
}

/* allow records the request at now if it fits under the cap and reports
 * whether it was admitted. A rejected request is not recorded, so it does
 * not consume window capacity.
 */
func (w *window) allow(now time.Time) bool {
	cutoff := now.Add(-time.Minute)

	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept

	if len(w.timestamps) >= w.limit {
		return false
	}

	w.timestamps = append(w.timestamps, now)
	return true
}
