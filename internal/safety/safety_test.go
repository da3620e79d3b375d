package safety

import (
	"context"
	"errors"
	"testing"
)

func TestLocalCheckerFlagsBlockedPhrase(t *testing.T) {
	c := LocalChecker{}
	got, err := c.Check(context.Background(), "I will kill the process if it hangs")
	if err != nil {
		t.Fatalf("Check error = %v", err)
	}
	if !got.Flagged || got.Category != "violence" {
		t.Fatalf("got = %+v, want flagged violence", got)
	}
}

func TestLocalCheckerRedactsEmail(t *testing.T) {
	c := LocalChecker{}
	got, err := c.Check(context.Background(), "reach me at student@example.com for notes")
	if err != nil {
		t.Fatalf("Check error = %v", err)
	}
	if !got.Flagged || got.Category != "pii" {
		t.Fatalf("got = %+v, want flagged pii", got)
	}
	if got.SafeText == got.Original {
		t.Fatalf("SafeText unchanged, want redaction")
	}
}

func TestLocalCheckerPassesCleanText(t *testing.T) {
	c := LocalChecker{}
	got, err := c.Check(context.Background(), "Let's solve for x in the equation.")
	if err != nil {
		t.Fatalf("Check error = %v", err)
	}
	if got.Flagged {
		t.Fatalf("got = %+v, want clean", got)
	}
	if got.SafeText != "Let's solve for x in the equation." {
		t.Fatalf("SafeText = %q, want passthrough", got.SafeText)
	}
}

func TestFailOpenOnCheckerError(t *testing.T) {
	c := StaticChecker{Err: errors.New("moderation endpoint down")}
	got := FailOpen(context.Background(), c, "original text")
	if got.Flagged {
		t.Fatalf("got = %+v, want fail-open unflagged", got)
	}
	if got.SafeText != "original text" {
		t.Fatalf("SafeText = %q, want passthrough original", got.SafeText)
	}
}

func TestFailOpenNilChecker(t *testing.T) {
	got := FailOpen(context.Background(), nil, "hello")
	if got.SafeText != "hello" {
		t.Fatalf("SafeText = %q, want passthrough", got.SafeText)
	}
}
