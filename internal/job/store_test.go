package job

import (
	"context"
	"testing"
	"time"
)

func TestStorePutGetRemove(t *testing.T) {
	s := NewStore(time.Hour)
	j := New("j1", "s1", "hi", time.Now())
	s.Put(j)

	got, err := s.Get("j1")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if got.ID != "j1" {
		t.Fatalf("got.ID = %q", got.ID)
	}

	s.Remove("j1")
	if _, err := s.Get("j1"); err != ErrNotFound {
		t.Fatalf("Get after Remove error = %v, want ErrNotFound", err)
	}
}

func TestReclaimerRemovesOnlyExpiredTerminalJobs(t *testing.T) {
	s := NewStore(20 * time.Millisecond)

	terminalOld := New("old", "s1", "hi", time.Now())
	terminalOld.MarkComplete("safe", "raw", time.Now().Add(-time.Hour))
	s.Put(terminalOld)

	pending := New("pending", "s1", "hi", time.Now())
	s.Put(pending)

	var reclaimedCount int
	s.SetReclaimHook(func(n int) { reclaimedCount += n })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartReclaimer(ctx, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	if _, err := s.Get("old"); err != ErrNotFound {
		t.Fatalf("expired terminal job should have been reclaimed, err = %v", err)
	}
	if _, err := s.Get("pending"); err != nil {
		t.Fatalf("pending job should never be reclaimed, err = %v", err)
	}
	if reclaimedCount < 1 {
		t.Fatalf("reclaimedCount = %d, want at least 1", reclaimedCount)
	}
}
