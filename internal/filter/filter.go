// ABOUTME: Pure accept/reject filter applied to raw events before persistence
// ABOUTME: Normalizes fields and enforces the exclude-word and minimum-length rules

package filter

import (
	"strings"

	"github.com/Azhdankov/JobSearcher/internal/source"
	"github.com/Azhdankov/JobSearcher/internal/store"
)

// Reason explains why an event was rejected.
type Reason string

const (
	ReasonTooShort     Reason = "too_short"
	ReasonExcludedWord Reason = "excluded_word"
)

// Filter decides whether a raw event is worth persisting. It is pure:
// no I/O, no state, same decision for the same event and configuration.
type Filter struct {
	excludeWords []string // pre-lowercased
	minLength    int      // 0 disables the length check
}

// New creates a filter with the given exclude words (matched
// case-insensitively as substrings) and minimum trimmed text length.
func New(excludeWords []string, minLength int) *Filter {
	lowered := make([]string, 0, len(excludeWords))
	for _, w := range excludeWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			lowered = append(lowered, w)
		}
	}
	return &Filter{excludeWords: lowered, minLength: minLength}
}

// Result is the outcome of filtering one event. When Accepted is true,
// Message holds the normalized record ready for insertion with status
// forced to new; otherwise Reason says why the event was dropped.
type Result struct {
	Accepted bool
	Reason   Reason
	Message  *store.Message
}

// Apply normalizes the event and runs the rejection rules in order:
// minimum length first, then exclude words.
func (f *Filter) Apply(ev source.RawEvent) Result {
	trimmed := strings.TrimSpace(ev.Text)

	if f.minLength > 0 && len([]rune(trimmed)) < f.minLength {
		return Result{Reason: ReasonTooShort}
	}

	lowered := strings.ToLower(ev.Text)
	for _, word := range f.excludeWords {
		if strings.Contains(lowered, word) {
			return Result{Reason: ReasonExcludedWord}
		}
	}

	return Result{
		Accepted: true,
		Message: &store.Message{
			ID:          ev.ID,
			ChannelName: ev.ChannelName,
			ChannelID:   ev.ChannelID,
			Timestamp:   ev.Timestamp,
			Text:        ev.Text,
			Author:      ev.Author,
			Status:      store.StatusNew,
		},
	}
}
