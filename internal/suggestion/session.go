package suggestion

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"project-polaris/backend/internal/completion"
	"project-polaris/backend/internal/editor"
)

// DefaultDebounce is the quiet period before a completion request is issued.
const DefaultDebounce = 300 * time.Millisecond

// KeyTab is the key that accepts a displayed suggestion.
const KeyTab = "tab"

type Completer interface {
	Complete(ctx context.Context, p completion.Payload) (string, error)
}

type State int

const (
	Idle State = iota
	Debouncing
	AwaitingResponse
	Displaying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case AwaitingResponse:
		return "awaiting"
	case Displaying:
		return "displaying"
	}
	return "unknown"
}

// Ghost is a suggestion rendered as inert text immediately after the cursor.
type Ghost struct {
	Text string
	At   int
}

type Option func(*Session)

func WithDebounce(d time.Duration) Option {
	return func(s *Session) { s.debounce = d }
}

func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithAcceptKey(key string) Option {
	return func(s *Session) { s.acceptKey = key }
}

// OnChange is called, outside the session lock, whenever the displayed state changes.
func OnChange(fn func()) Option {
	return func(s *Session) { s.onChange = fn }
}

// Session runs the suggestion cycle for one open document. At most one debounce
// timer and one request are live at a time; every edit or cursor move supersedes both.
type Session struct {
	buf       *editor.Buffer
	fileName  string
	completer Completer
	clock     clock.Clock
	debounce  time.Duration
	acceptKey string
	onChange  func()

	mu          sync.Mutex
	state       State
	seq         uint64
	timer       *clock.Timer
	cancel      context.CancelFunc
	ghost       Ghost
	closed      bool
	unsubscribe func()
}

// NewSession attaches a session to buf and starts the first cycle.
func NewSession(buf *editor.Buffer, fileName string, completer Completer, opts ...Option) *Session {
	if buf == nil || completer == nil {
		panic("suggestion: buffer and completer are required")
	}
	s := &Session{
		buf:       buf,
		fileName:  fileName,
		completer: completer,
		clock:     clock.New(),
		debounce:  DefaultDebounce,
		acceptKey: KeyTab,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = buf.Subscribe(func(editor.Change) { s.Trigger() })
	s.Trigger()
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ghost returns the suggestion to render, if any. Nothing renders while a request is pending.
func (s *Session) Ghost() (Ghost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Displaying || s.ghost.Text == "" {
		return Ghost{}, false
	}
	return s.ghost, true
}

// Trigger restarts the cycle: the pending timer and in-flight request are dropped,
// the displayed suggestion is cleared and a new quiet period begins.
func (s *Session) Trigger() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.state = Debouncing
	seq := s.seq
	s.timer = s.clock.AfterFunc(s.debounce, func() { s.fire(seq) })
	s.mu.Unlock()
	s.changed()
}

// HandleKey accepts the displayed suggestion when key is the accept key. It returns
// true when the key was consumed; false means the caller should apply its default action.
func (s *Session) HandleKey(key string) bool {
	if key != s.acceptKey {
		return false
	}
	return s.Accept()
}

// Accept inserts the displayed suggestion at the cursor and moves the cursor past it.
func (s *Session) Accept() bool {
	s.mu.Lock()
	if s.closed || s.state != Displaying || s.ghost.Text == "" {
		s.mu.Unlock()
		return false
	}
	text := s.ghost.Text
	s.ghost = Ghost{}
	s.state = Idle
	s.mu.Unlock()

	// The insert notifies subscribers, which restarts the cycle.
	s.buf.InsertAtCursor(text)
	s.changed()
	return true
}

// Dismiss hides the displayed suggestion without starting a new cycle.
func (s *Session) Dismiss() {
	s.mu.Lock()
	if s.state != Displaying {
		s.mu.Unlock()
		return
	}
	s.ghost = Ghost{}
	s.state = Idle
	s.mu.Unlock()
	s.changed()
}

// Close detaches the session from its buffer and abandons any pending work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.resetLocked()
	s.state = Idle
	unsubscribe := s.unsubscribe
	s.mu.Unlock()
	unsubscribe()
}

func (s *Session) resetLocked() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.ghost = Ghost{}
}

func (s *Session) fire(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	snap := s.buf.Snapshot()
	payload, ok := BuildPayload(snap, s.fileName)
	if !ok {
		s.state = Idle
		s.mu.Unlock()
		s.changed()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = AwaitingResponse
	s.mu.Unlock()
	s.changed()

	text, err := s.completer.Complete(ctx, payload)

	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.cancel = nil
	cancel()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("[Suggest] Completion for %s failed: %v", s.fileName, err)
		}
		text = ""
	}
	s.ghost = Ghost{Text: text, At: snap.Cursor}
	s.state = Displaying
	s.mu.Unlock()
	s.changed()
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
