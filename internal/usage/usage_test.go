package usage

import (
	"testing"
)

func TestTrackerCounters(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordSuccess("openai", 120, 0.002)
	tracker.RecordSuccess("openai", 80, 0.001)
	tracker.RecordFailure("openai")

	s := tracker.Get("openai")
	if s.TotalRequests != 3 || s.SuccessfulRequests != 2 || s.FailedRequests != 1 {
		t.Errorf("counters = %+v", s)
	}
	if s.TotalTokens != 200 {
		t.Errorf("tokens = %d, want 200", s.TotalTokens)
	}
	if s.EstimatedCost < 0.0029 || s.EstimatedCost > 0.0031 {
		t.Errorf("cost = %f", s.EstimatedCost)
	}
}

func TestConsecutiveErrors(t *testing.T) {
	tracker := NewTracker()

	if n := tracker.RecordFailure("gemini"); n != 1 {
		t.Errorf("first failure streak = %d", n)
	}
	if n := tracker.RecordFailure("gemini"); n != 2 {
		t.Errorf("second failure streak = %d", n)
	}
	tracker.RecordSuccess("gemini", 10, 0)
	if n := tracker.RecordFailure("gemini"); n != 1 {
		t.Errorf("streak after success = %d, want 1", n)
	}
}

func TestResetAndSnapshot(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordSuccess("a", 1, 0)
	tracker.RecordFailure("b")

	snap := tracker.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d", len(snap))
	}

	tracker.Reset("a")
	if s := tracker.Get("a"); s.TotalRequests != 0 {
		t.Errorf("reset provider still has stats: %+v", s)
	}
	if s := tracker.Get("b"); s.FailedRequests != 1 {
		t.Errorf("reset must not touch other providers: %+v", s)
	}
}

func TestModelCostFallback(t *testing.T) {
	known := EstimateCost("gpt-4o", 1000, 1000)
	if known <= 0 {
		t.Error("known model should have a cost")
	}

	// Dated snapshot resolves by prefix.
	snap := ModelCost("gpt-4o-2024-11-20")
	if snap != ModelCost("gpt-4o") {
		t.Error("snapshot should match its base model")
	}

	// Unknown models use the cheapest entry.
	unknown := ModelCost("totally-unknown-model")
	for _, c := range []Cost{ModelCost("gpt-4o"), ModelCost("claude-sonnet-4-20250514")} {
		if unknown.PromptPer1K+unknown.CompletionPer1K > c.PromptPer1K+c.CompletionPer1K {
			t.Error("unknown model should fall back to the cheapest entry")
		}
	}
}
