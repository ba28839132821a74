package session

import (
	"container/heap"
	"net/http"
	"sync"
	"time"
)

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type expiry struct {
	id        string
	expiresAt time.Time
}

// expiryQueue is a min-heap on expiresAt.
type expiryQueue []expiry

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].expiresAt.Before(q[j].expiresAt) }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) {
	*q = append(*q, x.(expiry))
}

func (q *expiryQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// MemoryStore keeps session values in process memory, addressed by a session
// id cookie. Expired sessions are evicted lazily.
type MemoryStore struct {
	CookieOptions
	TTL time.Duration

	mu       sync.RWMutex
	sessions map[string]memoryEntry
	queue    expiryQueue
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCookieOptions replaces the session cookie options.
func WithCookieOptions(options CookieOptions) MemoryOption {
	return func(store *MemoryStore) {
		store.CookieOptions = options
	}
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(store *MemoryStore) {
		store.now = now
	}
}

// NewMemoryStore creates an in-memory store. A zero ttl never expires sessions.
func NewMemoryStore(name string, ttl time.Duration, options ...MemoryOption) *MemoryStore {
	store := &MemoryStore{
		CookieOptions: DefaultCookieOptions(name),
		TTL:           ttl,
		sessions:      map[string]memoryEntry{},
		now:           time.Now,
	}
	for _, opt := range options {
		opt(store)
	}
	return store
}

// Get loads a session from the request.
func (s *MemoryStore) Get(r *http.Request) (*Session, error) {
	now := s.now()
	s.evict(now)

	id, ok := s.read(r)
	if !ok {
		return s.fresh()
	}

	s.mu.RLock()
	entry, found := s.sessions[id]
	s.mu.RUnlock()
	if !found || entry.expired(now) {
		return s.fresh()
	}
	return &Session{ID: id, Values: copyValues(entry.values)}, nil
}

// Save persists a session and refreshes its expiry.
func (s *MemoryStore) Save(w http.ResponseWriter, session *Session) error {
	if session == nil {
		return ErrMissingSession
	}
	if session.ID == "" {
		id, err := newSessionID()
		if err != nil {
			return err
		}
		session.ID = id
	}

	now := s.now()
	entry := memoryEntry{values: copyValues(session.Values)}
	s.mu.Lock()
	s.evictLocked(now)
	if s.TTL > 0 {
		entry.expiresAt = now.Add(s.TTL)
		heap.Push(&s.queue, expiry{id: session.ID, expiresAt: entry.expiresAt})
	}
	s.sessions[session.ID] = entry
	s.mu.Unlock()

	s.write(w, session.ID, s.TTL, now)
	session.markSaved()
	return nil
}

// Clear removes a session and expires its cookie.
func (s *MemoryStore) Clear(w http.ResponseWriter, session *Session) {
	if session != nil && session.ID != "" {
		s.mu.Lock()
		delete(s.sessions, session.ID)
		s.mu.Unlock()
	}
	s.expire(w)
	if session != nil {
		session.reset()
	}
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) fresh() (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	return newEmpty(id), nil
}

func (s *MemoryStore) evict(now time.Time) {
	if s.TTL <= 0 {
		return
	}
	s.mu.RLock()
	due := len(s.queue) > 0 && !s.queue[0].expiresAt.After(now)
	s.mu.RUnlock()
	if !due {
		return
	}
	s.mu.Lock()
	s.evictLocked(now)
	s.mu.Unlock()
}

func (s *MemoryStore) evictLocked(now time.Time) {
	for len(s.queue) > 0 && !s.queue[0].expiresAt.After(now) {
		next := heap.Pop(&s.queue).(expiry)
		stored, ok := s.sessions[next.id]
		// A later Save pushed a newer expiry for the same id.
		if !ok || !stored.expiresAt.Equal(next.expiresAt) {
			continue
		}
		delete(s.sessions, next.id)
	}
}
