// Package safety moderates text produced by specialist generators before it
// reaches a student. Checks are fail-open: a checker error yields a clean
// result rather than blocking the tutoring turn.
package safety

import (
	"context"
	"regexp"
)

// Result is the outcome of checking one piece of text.
type Result struct {
	Flagged    bool
	Category   string
	Original   string
	SafeText   string
	Confidence float64
}

// Checker moderates a single sentence (or residual fragment) and returns
// the text that is safe to forward downstream.
type Checker interface {
	Check(ctx context.Context, text string) (Result, error)
}

// blockedPatterns catch content that must never reach a student regardless
// of subject: self-harm, explicit violence, and requests for personal
// contact information outside the platform.
var blockedPatterns = []struct {
	category string
	re       *regexp.Regexp
}{
	{"self_harm", regexp.MustCompile(`(?i)\b(kill yourself|suicide|self[- ]harm)\b`)},
	{"violence", regexp.MustCompile(`(?i)\b(i will hurt you|i'll hurt you|i will kill)\b`)},
	{"contact_info", regexp.MustCompile(`(?i)\b(call me at|text me at|my number is)\b`)},
}

// emailPattern and phonePattern catch PII a specialist generator should
// never have echoed back.
var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
)

// LocalChecker applies the blocked-pattern and PII rules directly, with no
// network call. It is the fallback used when no moderation endpoint is
// configured, and backs HTTPChecker when the endpoint call itself fails.
type LocalChecker struct{}

func (LocalChecker) Check(ctx context.Context, text string) (Result, error) {
	for _, bp := range blockedPatterns {
		if bp.re.MatchString(text) {
			return Result{
				Flagged:    true,
				Category:   bp.category,
				Original:   text,
				SafeText:   "",
				Confidence: 0.9,
			}, nil
		}
	}

	redacted := text
	changed := false
	if emailPattern.MatchString(redacted) {
		redacted = emailPattern.ReplaceAllString(redacted, "[redacted]")
		changed = true
	}
	if phonePattern.MatchString(redacted) {
		redacted = phonePattern.ReplaceAllString(redacted, "[redacted]")
		changed = true
	}

	if changed {
		return Result{
			Flagged:    true,
			Category:   "pii",
			Original:   text,
			SafeText:   redacted,
			Confidence: 0.7,
		}, nil
	}

	return Result{Original: text, SafeText: text}, nil
}

// StaticChecker is a collaborator test double that always returns a fixed
// result, or a fixed error.
type StaticChecker struct {
	Result Result
	Err    error
}

func (c StaticChecker) Check(ctx context.Context, text string) (Result, error) {
	if c.Err != nil {
		return Result{}, c.Err
	}
	r := c.Result
	if r.SafeText == "" && !r.Flagged {
		r.SafeText = text
	}
	r.Original = text
	return r, nil
}

// FailOpen wraps a checker so that an error from the underlying
// implementation never halts the pipeline: the original text is passed
// through unmodified instead.
func FailOpen(ctx context.Context, c Checker, text string) Result {
	if c == nil {
		return Result{Original: text, SafeText: text}
	}
	result, err := c.Check(ctx, text)
	if err != nil {
		return Result{Original: text, SafeText: text}
	}
	return result
}
