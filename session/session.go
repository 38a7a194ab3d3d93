// Package session holds the ephemeral per-upload state of a fill
// conversation: the normalized package bytes and the placeholder list.
//
// The registry is a small capacity-bounded cache keyed by session ID.
// Entries expire after a sliding TTL and the oldest entry is evicted when
// the capacity is reached, so an abandoned upload can never grow the
// process without bound. Each session is only ever touched by the single
// client that created it, sequentially; the store's lock protects the
// registry itself, not cross-request ordering.
package session

import (
	"sync"
	"time"

	"github.com/quillard/formulaire/dialog"
)

// Session is one in-flight fill conversation.
type Session struct {
	ID           string
	Package      []byte // normalized docx bytes
	Placeholders []dialog.Placeholder
	CreatedAt    time.Time
	LastSeen     time.Time
}

// Filled returns how many placeholders carry a value.
func (s *Session) Filled() int {
	return dialog.FilledCount(s.Placeholders)
}

// Options configures a Store.
type Options struct {
	// TTL is how long a session survives without being touched. Sliding:
	// every Get refreshes the deadline. Default: 30 minutes.
	TTL time.Duration
	// MaxSessions caps the registry size; at capacity, Put evicts the
	// session with the oldest LastSeen. Default: 256.
	MaxSessions int
	// SweepInterval is the janitor period for dropping expired sessions.
	// Default: 1 minute.
	SweepInterval time.Duration
}

func (o *Options) defaults() {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Minute
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = 256
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
}

// Store is the session registry.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	opts     Options
	done     chan struct{}
	now      func() time.Time // test hook
}

// NewStore creates a Store and starts its janitor goroutine.
// Call Close to stop the janitor.
func NewStore(opts Options) *Store {
	opts.defaults()
	s := &Store{
		sessions: make(map[string]*Session),
		opts:     opts,
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go s.janitor()
	return s
}

// Put registers a session, evicting the stalest entry if at capacity.
func (s *Store) Put(sess *Session) {
	now := s.now()
	sess.CreatedAt = now
	sess.LastSeen = now

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.opts.MaxSessions {
		s.evictOldestLocked()
	}
	s.sessions[sess.ID] = sess
}

// Get returns the session for id, refreshing its TTL. Unknown or expired
// IDs return (nil, false); expired entries are removed on access as well
// as by the janitor.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(sess.LastSeen) > s.opts.TTL {
		delete(s.sessions, id)
		return nil, false
	}
	sess.LastSeen = now
	return sess, true
}

// Delete removes a session. Deleting an unknown ID is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the janitor goroutine.
func (s *Store) Close() {
	close(s.done)
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.LastSeen.Before(oldest) {
			oldestID = id
			oldest = sess.LastSeen
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
	}
}

func (s *Store) janitor() {
	tick := time.NewTicker(s.opts.SweepInterval)
	defer tick.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-tick.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen) > s.opts.TTL {
			delete(s.sessions, id)
		}
	}
}
