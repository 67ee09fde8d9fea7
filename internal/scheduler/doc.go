// Package scheduler provides the fixed-interval tick loop behind the
// background jobs. Ticks are serial by construction, which is what lets
// the selection cycle assume it never races with itself.
package scheduler
