package store

import (
	"log"
	"sync"
	"time"

	"voicebot/internal/model/chat"
)

// DefaultWindow is how many recent turns are sent to the completion model.
const DefaultWindow = 10

// retainLimit bounds how many turns a single conversation keeps resident.
// Turns older than this can never appear in a context window again.
const retainLimit = 50

// Options tunes the session lifecycle policy.
type Options struct {
	// Capacity is the maximum number of resident sessions. When exceeded,
	// the least recently used session is evicted.
	Capacity int
	// IdleTTL evicts sessions that have not been touched for this long.
	IdleTTL time.Duration
	// SweepPeriod is how often the janitor scans for idle sessions.
	SweepPeriod time.Duration
}

// DefaultOptions returns the policy used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Capacity:    1024,
		IdleTTL:     30 * time.Minute,
		SweepPeriod: 5 * time.Minute,
	}
}

type conversation struct {
	mu       sync.Mutex
	turns    []chat.Turn
	lastSeen time.Time
}

// ConversationStore holds per-session turn logs. Sessions are created lazily
// on first append, bounded by capacity and idle eviction, and live only for
// the process lifetime.
type ConversationStore struct {
	mu    sync.Mutex
	opts  Options
	convs map[string]*conversation

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a store and starts its eviction janitor.
func New(opts Options) *ConversationStore {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultOptions().Capacity
	}
	if opts.SweepPeriod <= 0 {
		opts.SweepPeriod = DefaultOptions().SweepPeriod
	}

	s := &ConversationStore{
		opts:  opts,
		convs: make(map[string]*conversation),
		done:  make(chan struct{}),
	}

	if opts.IdleTTL > 0 {
		go s.sweepLoop()
	}

	return s
}

// Close stops the background janitor.
func (s *ConversationStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// GetOrCreate ensures a conversation exists for the session. Idempotent.
func (s *ConversationStore) GetOrCreate(sessionID string) {
	s.acquire(sessionID)
}

// Append adds a turn to the session log, creating the session if needed.
// Appends for one session are serialized in arrival order.
func (s *ConversationStore) Append(sessionID string, turn chat.Turn) {
	conv := s.acquire(sessionID)

	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.turns = append(conv.turns, turn)
	if len(conv.turns) > retainLimit {
		trimmed := make([]chat.Turn, retainLimit)
		copy(trimmed, conv.turns[len(conv.turns)-retainLimit:])
		conv.turns = trimmed
	}
	conv.lastSeen = time.Now()
}

// ContextWindow returns the most recent turns, oldest first, at most limit.
// Unknown sessions yield an empty window without being created.
func (s *ConversationStore) ContextWindow(sessionID string, limit int) []chat.Turn {
	s.mu.Lock()
	conv, ok := s.convs[sessionID]
	s.mu.Unlock()
	if !ok || limit <= 0 {
		return nil
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	start := 0
	if len(conv.turns) > limit {
		start = len(conv.turns) - limit
	}
	window := make([]chat.Turn, len(conv.turns)-start)
	copy(window, conv.turns[start:])
	conv.lastSeen = time.Now()
	return window
}

// acquire looks up or creates the session entry, evicting the least recently
// used session when capacity is exceeded.
func (s *ConversationStore) acquire(sessionID string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.convs[sessionID]; ok {
		return conv
	}

	if len(s.convs) >= s.opts.Capacity {
		s.evictOldestLocked()
	}

	conv := &conversation{
		turns:    make([]chat.Turn, 0, 16),
		lastSeen: time.Now(),
	}
	s.convs[sessionID] = conv
	return conv
}

func (s *ConversationStore) evictOldestLocked() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, conv := range s.convs {
		conv.mu.Lock()
		seen := conv.lastSeen
		conv.mu.Unlock()
		if oldestID == "" || seen.Before(oldestAt) {
			oldestID = id
			oldestAt = seen
		}
	}
	if oldestID != "" {
		delete(s.convs, oldestID)
		log.Printf("[store] evicted session=%s (capacity %d reached)", oldestID, s.opts.Capacity)
	}
}

func (s *ConversationStore) sweepLoop() {
	ticker := time.NewTicker(s.opts.SweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepIdle(time.Now())
		}
	}
}

func (s *ConversationStore) sweepIdle(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, conv := range s.convs {
		conv.mu.Lock()
		idle := now.Sub(conv.lastSeen)
		conv.mu.Unlock()
		if idle > s.opts.IdleTTL {
			delete(s.convs, id)
			log.Printf("[store] expired idle session=%s (idle %s)", id, idle.Round(time.Second))
		}
	}
}
