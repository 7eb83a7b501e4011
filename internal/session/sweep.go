package session

import (
	"time"

	"dinepick/pkg/types"
)

// Sweep ends every session idle past the inactivity timeout and every session
// that has been empty longer than the grace period. It returns the ids of the
// removed sessions in sorted order.
func (e *Engine) Sweep(now time.Time) []string {
	var removed []string
	for _, id := range e.store.IDs() {
		sess, _ := e.store.Get(id)
		if !e.expired(sess, now) {
			continue
		}
		e.end(sess, types.EndReasonInactive)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		e.logger.Info("sweep removed sessions", "count", len(removed), "remaining", e.store.Len())
	}
	return removed
}

func (e *Engine) expired(sess *Session, now time.Time) bool {
	if now.Sub(sess.LastActivityAt) > e.opts.InactivityTimeout {
		return true
	}
	return sess.IsEmpty() && !sess.EmptySince.IsZero() && now.Sub(sess.EmptySince) >= e.opts.EmptySessionGrace
}
