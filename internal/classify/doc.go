// Package classify calls an external text-classification model to pick
// the messages matching the operator's criteria. One call covers a whole
// selection batch. A malformed or failed reply degrades to an empty
// selection; the selection cycle treats that the same as "nothing
// matched" and still closes its window.
package classify
