// Package processor implements the periodic selection cycle. Each tick
// reads the pending batch in timestamp order, asks the classifier for
// the matching subset in a single call, closes the time window by
// marking it completed, and then fans out one notification per match.
//
// Two deliberate tradeoffs live here. The window is closed even when
// classification fails, so a classifier outage costs that batch's
// selection opportunity instead of blocking the queue. And delivery is
// at-most-once per match: items are already completed when dispatch
// runs, so a crash between the two steps drops those notifications
// rather than duplicating them.
package processor
