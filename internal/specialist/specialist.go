// Package specialist opens a text-delta stream from the subject-specific
// generator chosen by routing. No specialist may hand a turn to another
// specialist — the orchestrator alone decides routing per turn.
package specialist

import (
	"context"

	"github.com/antoniostano/tutorcore/internal/routing"
)

// Delta is one chunk of generated text.
type Delta struct {
	Text string
	Err  error
}

// Registry opens a stream of deltas for a routed subject and utterance.
// The returned channel is closed when the specialist finishes or the
// context is canceled; a non-nil Delta.Err on the final item signals
// failure and ends the stream.
type Registry interface {
	Open(ctx context.Context, subject routing.SubjectRoute, utterance string) (<-chan Delta, error)
}

// escalationMessage is the fixed line played while a human teacher is
// paged in. It is never generated by a model.
const escalationMessage = "I'm connecting you with a teacher who can help with this."

// staticStream returns a single-delta, already-closed channel.
func staticStream(text string) <-chan Delta {
	ch := make(chan Delta, 1)
	ch <- Delta{Text: text}
	close(ch)
	return ch
}
