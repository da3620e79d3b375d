// Package filter buffers streamed specialist output into whole sentences
// and runs each one through a safety checker before it is released for
// speech synthesis. Consume never emits a partial sentence; Finalize
// flushes the unterminated trailing fragment once the stream has ended.
package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/antoniostano/tutorcore/internal/safety"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+\s*`)

// SentenceBufferedFilter accumulates streamed chunks, splits on sentence
// boundaries, and checks each complete sentence before emitting it. It is
// not safe for concurrent use by multiple goroutines.
type SentenceBufferedFilter struct {
	checker safety.Checker
	buffer  strings.Builder
}

func NewSentenceBufferedFilter(checker safety.Checker) *SentenceBufferedFilter {
	return &SentenceBufferedFilter{checker: checker}
}

// Consume appends a streamed chunk and returns zero or more safety-checked
// sentences that are now ready to emit. The trailing partial sentence, if
// any, is retained in the internal buffer for the next call.
func (f *SentenceBufferedFilter) Consume(ctx context.Context, chunk string) []string {
	f.buffer.WriteString(chunk)

	var out []string
	for {
		remaining := f.buffer.String()
		loc := sentenceEnd.FindStringIndex(remaining)
		if loc == nil {
			break
		}
		sentence := remaining[:loc[1]]
		rest := remaining[loc[1]:]

		f.buffer.Reset()
		f.buffer.WriteString(rest)

		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		result := safety.FailOpen(ctx, f.checker, trimmed)
		if result.SafeText != "" {
			out = append(out, result.SafeText+" ")
		}
	}
	return out
}

// Finalize flushes any residual text that never reached a sentence
// terminator. It must be called exactly once, after the source stream
// ends, so no trailing fragment is silently dropped.
func (f *SentenceBufferedFilter) Finalize(ctx context.Context) string {
	remaining := strings.TrimSpace(f.buffer.String())
	f.buffer.Reset()
	if remaining == "" {
		return ""
	}
	result := safety.FailOpen(ctx, f.checker, remaining)
	return result.SafeText
}
