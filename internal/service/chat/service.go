package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"voicebot/internal/gateway"
	"voicebot/internal/model/chat"
	"voicebot/internal/store"
)

// ErrEmptyMessage rejects text round trips with no usable input.
var ErrEmptyMessage = errors.New("message is required")

// FallbackReply is substituted whenever the completion gateway fails. The
// caller still sees a successful response; the outage is only logged.
const FallbackReply = "I'm sorry, but I'm currently having trouble connecting to my brain. This is a fallback response. Please try again later or contact support if this persists."

// Orchestrator runs the text round trip: append the user turn, build the
// model context, invoke the completion gateway, record the reply.
type Orchestrator struct {
	store       *store.ConversationStore
	completion  gateway.Completion
	personality string
	timeout     time.Duration
}

// NewOrchestrator wires the conversation store and completion gateway.
// personality becomes the system turn of every model request; timeout bounds
// each gateway call (zero disables the bound).
func NewOrchestrator(convs *store.ConversationStore, completion gateway.Completion, personality string, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		store:       convs,
		completion:  completion,
		personality: personality,
		timeout:     timeout,
	}
}

// Result is the outcome of one text round trip.
type Result struct {
	Reply string
	// Fallback is true when Reply is the canned FallbackReply rather than a
	// genuine model reply. Callers use it to skip speech synthesis.
	Fallback bool
	Recent   []chat.Turn
}

// HandleText processes one user message for a session. Completion gateway
// failures are swallowed here: the fallback reply is recorded and returned as
// success so the client never hard-fails on an upstream outage.
func (o *Orchestrator) HandleText(ctx context.Context, sessionID, message string) (Result, error) {
	if strings.TrimSpace(message) == "" {
		return Result{}, ErrEmptyMessage
	}

	o.store.Append(sessionID, chat.UserTurn(message))

	// The window is read after the append so the new user turn is included.
	window := o.store.ContextWindow(sessionID, store.DefaultWindow)
	turns := make([]chat.Turn, 0, len(window)+1)
	turns = append(turns, chat.SystemTurn(o.personality))
	turns = append(turns, window...)

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	reply, err := o.completion.Complete(callCtx, turns)
	fallback := false
	if err != nil {
		log.Printf("[chat] completion failed for session=%s: %v", sessionID, err)
		reply = FallbackReply
		fallback = true
	}

	o.store.Append(sessionID, chat.AssistantTurn(reply))

	return Result{
		Reply:    reply,
		Fallback: fallback,
		Recent:   o.store.ContextWindow(sessionID, store.DefaultWindow),
	}, nil
}
