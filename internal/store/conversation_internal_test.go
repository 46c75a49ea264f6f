package store

import (
	"testing"
	"time"

	"voicebot/internal/model/chat"
)

func TestSweepIdleRemovesStaleSessions(t *testing.T) {
	s := New(Options{Capacity: 4, IdleTTL: time.Minute, SweepPeriod: time.Hour})
	defer s.Close()

	s.Append("stale", chat.UserTurn("hi"))
	s.Append("fresh", chat.UserTurn("hi"))

	s.mu.Lock()
	s.convs["stale"].lastSeen = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	s.sweepIdle(time.Now())

	if got := s.ContextWindow("stale", 1); len(got) != 0 {
		t.Fatalf("expected stale session to be swept, got %d turns", len(got))
	}
	if got := s.ContextWindow("fresh", 1); len(got) != 1 {
		t.Fatalf("expected fresh session to survive, got %d turns", len(got))
	}
}
