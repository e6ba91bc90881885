package odontogram

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("editing session not found")

// SessionObserver is told about edits and the number of open sessions.
type SessionObserver interface {
	EditApplied(action string, applied bool)
	SessionsOpen(n int)
}

type nopObserver struct{}

func (nopObserver) EditApplied(string, bool) {}
func (nopObserver) SessionsOpen(int)         {}

// Edit actions accepted by Session.Apply.
const (
	ActionSetStatus        = "set_status"
	ActionToggleSector     = "toggle_sector"
	ActionToggleCrown      = "toggle_crown"
	ActionToggleProsthesis = "toggle_prosthesis"
	ActionToggleExtraction = "toggle_extraction"
)

// Action is one user edit on a session's chart.
type Action struct {
	Action string  `json:"action"`
	Tooth  ToothID `json:"tooth"`
	Status Status  `json:"status,omitempty"`
	Sector Sector  `json:"sector,omitempty"`
}

// Session binds one Editor to one visit.
type Session struct {
	ID      uuid.UUID
	VisitID uuid.UUID

	mu           sync.Mutex
	editor       *Editor
	latest       Chart
	version      uint64
	savedVersion uint64
	lastActivity time.Time
	now          func() time.Time
	observer     SessionObserver
}

// Snapshot is the serializable state of a session.
type Snapshot struct {
	ID       uuid.UUID     `json:"id"`
	VisitID  uuid.UUID     `json:"visit_id"`
	Tool     Tool          `json:"tool"`
	ReadOnly bool          `json:"read_only"`
	Color    Color         `json:"color"`
	Dirty    bool          `json:"dirty"`
	Chart    Chart         `json:"chart"`
	Summary  Summary       `json:"summary"`
	Legend   []LegendEntry `json:"legend,omitempty"`
}

func (s *Session) dirty() bool { return s.version != s.savedVersion }

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		ID:       s.ID,
		VisitID:  s.VisitID,
		Tool:     s.editor.Tool(),
		ReadOnly: s.editor.ReadOnly(),
		Color:    s.editor.Color(),
		Dirty:    s.dirty(),
		Chart:    s.editor.Chart(),
		Summary:  s.editor.Summary(),
	}
	if snap.ReadOnly {
		snap.Legend = Legend()
	}
	return snap
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Activate switches the editor tool.
func (s *Session) Activate(t Tool) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.now()
	s.editor.Activate(t)
	return s.snapshot()
}

// Apply runs one edit. Rejected edits leave the chart untouched and report false.
func (s *Session) Apply(a Action) (bool, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.now()

	var applied bool
	switch a.Action {
	case ActionSetStatus:
		applied = s.editor.SetToothStatus(a.Tooth, a.Status)
	case ActionToggleSector:
		applied = s.editor.ToggleSector(a.Tooth, a.Sector)
	case ActionToggleCrown:
		applied = s.editor.ToggleCrown(a.Tooth)
	case ActionToggleProsthesis:
		applied = s.editor.ToggleProsthesis(a.Tooth)
	case ActionToggleExtraction:
		applied = s.editor.ToggleExtraction(a.Tooth)
	}

	s.observer.EditApplied(a.Action, applied)
	return applied, s.snapshot()
}

// PendingChart is the chart a save should write.
type PendingChart struct {
	Chart   Chart
	Version uint64
	Dirty   bool
}

// Pending returns the latest chart reported by the editor, the edit version
// it belongs to and whether it has changed since the last save.
func (s *Session) Pending() PendingChart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PendingChart{Chart: s.latest.Clone(), Version: s.version, Dirty: s.dirty()}
}

// MarkSaved records that the chart of the given version was stored. Edits
// applied after that version stay pending.
func (s *Session) MarkSaved(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.savedVersion {
		s.savedVersion = version
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// SessionStore keeps the open editing sessions of this process.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	now      func() time.Time
	observer SessionObserver
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
		now:      time.Now,
		observer: nopObserver{},
	}
}

// Observe reports activity of sessions opened from now on to o.
func (st *SessionStore) Observe(o SessionObserver) {
	if o == nil {
		o = nopObserver{}
	}
	st.mu.Lock()
	st.observer = o
	st.mu.Unlock()
}

// Open starts a session for a visit. The editor's updates are recorded on
// the session before opts.OnUpdate is called.
func (st *SessionStore) Open(visitID uuid.UUID, opts EditorOptions) *Session {
	st.mu.RLock()
	observer := st.observer
	st.mu.RUnlock()

	sess := &Session{
		ID:           uuid.New(),
		VisitID:      visitID,
		now:          st.now,
		lastActivity: st.now(),
		observer:     observer,
	}
	hostUpdate := opts.OnUpdate
	opts.OnUpdate = func(c Chart) {
		// Runs under sess.mu, inside Apply.
		sess.latest = c
		sess.version++
		if hostUpdate != nil {
			hostUpdate(c)
		}
	}
	sess.editor = NewEditor(opts)
	sess.latest = sess.editor.Chart()

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	n := len(st.sessions)
	st.mu.Unlock()
	observer.SessionsOpen(n)
	return sess
}

func (st *SessionStore) Get(id uuid.UUID) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Close removes a session. It reports whether the session existed.
func (st *SessionStore) Close(id uuid.UUID) bool {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	n, observer := len(st.sessions), st.observer
	st.mu.Unlock()
	observer.SessionsOpen(n)
	return ok
}

// Sweep closes sessions idle for longer than idle and returns how many were closed.
func (st *SessionStore) Sweep(idle time.Duration) int {
	cutoff := st.now().Add(-idle)
	st.mu.Lock()
	closed := 0
	for id, sess := range st.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			closed++
		}
	}
	n, observer := len(st.sessions), st.observer
	st.mu.Unlock()
	observer.SessionsOpen(n)
	return closed
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
