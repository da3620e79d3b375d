package audit

import (
	"testing"
	"time"
)

var _ Sink = (*InMemorySink)(nil)
var _ Sink = (*PostgresSink)(nil)

func TestInMemorySinkAccumulatesRecords(t *testing.T) {
	sink := NewInMemorySink()

	if err := sink.WriteRoutingDecision(RoutingDecision{SessionID: "s1", Subject: "math", DecidedAt: time.Now()}); err != nil {
		t.Fatalf("WriteRoutingDecision error = %v", err)
	}
	if err := sink.WriteSafetyEvent(SafetyEvent{SessionID: "s1", Flagged: true, CheckedAt: time.Now()}); err != nil {
		t.Fatalf("WriteSafetyEvent error = %v", err)
	}
	if err := sink.WriteTranscriptTurn(TranscriptTurn{SessionID: "s1", SafeText: "hi", CompletedAt: time.Now()}); err != nil {
		t.Fatalf("WriteTranscriptTurn error = %v", err)
	}
	if err := sink.WriteEscalationEvent(EscalationEvent{SessionID: "s1", Reason: "stuck", OccurredAt: time.Now()}); err != nil {
		t.Fatalf("WriteEscalationEvent error = %v", err)
	}

	if len(sink.RoutingDecisions()) != 1 {
		t.Fatalf("RoutingDecisions() len = %d, want 1", len(sink.RoutingDecisions()))
	}
	if len(sink.SafetyEvents()) != 1 {
		t.Fatalf("SafetyEvents() len = %d, want 1", len(sink.SafetyEvents()))
	}
	if len(sink.TranscriptTurns()) != 1 {
		t.Fatalf("TranscriptTurns() len = %d, want 1", len(sink.TranscriptTurns()))
	}
	if len(sink.EscalationEvents()) != 1 {
		t.Fatalf("EscalationEvents() len = %d, want 1", len(sink.EscalationEvents()))
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
