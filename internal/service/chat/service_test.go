package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicebot/internal/model/chat"
	chatservice "voicebot/internal/service/chat"
	"voicebot/internal/store"
)

type fakeCompletion struct {
	reply string
	err   error
	seen  [][]chat.Turn
}

func (f *fakeCompletion) Complete(_ context.Context, turns []chat.Turn) (string, error) {
	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	f.seen = append(f.seen, copied)
	return f.reply, f.err
}

func newOrchestrator(completion *fakeCompletion) (*chatservice.Orchestrator, *store.ConversationStore) {
	convs := store.New(store.Options{Capacity: 8})
	return chatservice.NewOrchestrator(convs, completion, "be helpful", time.Second), convs
}

func TestHandleTextRejectsEmptyMessage(t *testing.T) {
	svc, convs := newOrchestrator(&fakeCompletion{reply: "hi"})
	defer convs.Close()

	for _, message := range []string{"", "   "} {
		if _, err := svc.HandleText(context.Background(), "sess", message); !errors.Is(err, chatservice.ErrEmptyMessage) {
			t.Fatalf("HandleText(%q) err = %v, want ErrEmptyMessage", message, err)
		}
	}
}

func TestHandleTextSuccess(t *testing.T) {
	completion := &fakeCompletion{reply: "hi there"}
	svc, convs := newOrchestrator(completion)
	defer convs.Close()

	result, err := svc.HandleText(context.Background(), "sess", "hello")
	if err != nil {
		t.Fatalf("HandleText err: %v", err)
	}
	if result.Reply != "hi there" || result.Fallback {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(result.Recent) != 2 {
		t.Fatalf("expected 2 recent turns, got %d", len(result.Recent))
	}
	if result.Recent[0].Role != chat.RoleUser || result.Recent[0].Content != "hello" {
		t.Fatalf("unexpected first turn: %+v", result.Recent[0])
	}
	if result.Recent[1].Role != chat.RoleAssistant || result.Recent[1].Content != "hi there" {
		t.Fatalf("unexpected second turn: %+v", result.Recent[1])
	}
}

func TestHandleTextSendsSystemTurnAndWindow(t *testing.T) {
	completion := &fakeCompletion{reply: "ok"}
	svc, convs := newOrchestrator(completion)
	defer convs.Close()

	if _, err := svc.HandleText(context.Background(), "sess", "hello"); err != nil {
		t.Fatalf("HandleText err: %v", err)
	}

	if len(completion.seen) != 1 {
		t.Fatalf("expected one completion call, got %d", len(completion.seen))
	}
	sent := completion.seen[0]
	if sent[0].Role != chat.RoleSystem || sent[0].Content != "be helpful" {
		t.Fatalf("expected fresh system turn first, got %+v", sent[0])
	}
	if sent[len(sent)-1].Content != "hello" {
		t.Fatalf("expected user message last, got %+v", sent[len(sent)-1])
	}
}

func TestHandleTextWindowIsBounded(t *testing.T) {
	completion := &fakeCompletion{reply: "ok"}
	svc, convs := newOrchestrator(completion)
	defer convs.Close()

	for i := 0; i < 12; i++ {
		if _, err := svc.HandleText(context.Background(), "sess", "message"); err != nil {
			t.Fatalf("HandleText err: %v", err)
		}
	}

	last := completion.seen[len(completion.seen)-1]
	// One synthesized system turn plus at most the window of stored turns.
	if len(last) != store.DefaultWindow+1 {
		t.Fatalf("expected %d turns in model request, got %d", store.DefaultWindow+1, len(last))
	}
}

func TestHandleTextFallsBackOnGatewayFailure(t *testing.T) {
	completion := &fakeCompletion{err: errors.New("rate limited")}
	svc, convs := newOrchestrator(completion)
	defer convs.Close()

	result, err := svc.HandleText(context.Background(), "sess", "hello")
	if err != nil {
		t.Fatalf("HandleText err: %v", err)
	}
	if !result.Fallback {
		t.Fatal("expected fallback result")
	}
	if result.Reply != chatservice.FallbackReply {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}

	// The fallback must be recorded as an assistant turn.
	window := convs.ContextWindow("sess", store.DefaultWindow)
	lastTurn := window[len(window)-1]
	if lastTurn.Role != chat.RoleAssistant || lastTurn.Content != chatservice.FallbackReply {
		t.Fatalf("fallback not appended to log: %+v", lastTurn)
	}
}
