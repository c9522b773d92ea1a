package editor

import (
	"strings"
	"sync"
)

// ChangeKind says what a Change touched.
type ChangeKind int

const (
	ChangeText ChangeKind = iota + 1
	ChangeCursor
)

// Change is delivered to subscribers after every edit or cursor move.
type Change struct {
	Kind     ChangeKind
	Snapshot Snapshot
}

// Snapshot is an immutable view of a buffer. Cursor is a rune offset into Text.
type Snapshot struct {
	Text   string
	Cursor int
}

// Lines splits the snapshot text on newlines. An empty text has one empty line.
func (s Snapshot) Lines() []string {
	return strings.Split(s.Text, "\n")
}

// LineCol returns the 0-indexed line of the cursor and its rune offset within that line.
func (s Snapshot) LineCol() (line, col int) {
	i := 0
	for _, r := range s.Text {
		if i == s.Cursor {
			break
		}
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
		i++
	}
	return line, col
}

// Buffer is a text document with a single cursor. It is safe for concurrent use;
// subscribers run synchronously on the mutating goroutine, outside the lock.
type Buffer struct {
	mu        sync.Mutex
	text      []rune
	cursor    int
	listeners map[int]func(Change)
	nextID    int
}

func NewBuffer(text string) *Buffer {
	return &Buffer{
		text:      []rune(text),
		listeners: make(map[int]func(Change)),
	}
}

func (b *Buffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

func (b *Buffer) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// Subscribe registers fn for every change and returns a function that removes it.
func (b *Buffer) Subscribe(fn func(Change)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// SetText replaces the whole document, clamping the cursor to the new length.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	b.text = []rune(text)
	b.cursor = clamp(b.cursor, 0, len(b.text))
	b.emitLocked(ChangeText)
}

// Insert inserts s at rune offset pos. A cursor at or after pos shifts right.
func (b *Buffer) Insert(pos int, s string) {
	if s == "" {
		return
	}
	b.mu.Lock()
	pos = clamp(pos, 0, len(b.text))
	ins := []rune(s)
	b.text = splice(b.text, pos, 0, ins)
	if b.cursor >= pos {
		b.cursor += len(ins)
	}
	b.emitLocked(ChangeText)
}

// InsertAtCursor inserts s at the cursor and leaves the cursor at the end of the
// inserted text as one change.
func (b *Buffer) InsertAtCursor(s string) {
	if s == "" {
		return
	}
	b.mu.Lock()
	ins := []rune(s)
	b.text = splice(b.text, b.cursor, 0, ins)
	b.cursor += len(ins)
	b.emitLocked(ChangeText)
}

// Delete removes up to n runes starting at pos.
func (b *Buffer) Delete(pos, n int) {
	b.mu.Lock()
	pos = clamp(pos, 0, len(b.text))
	n = clamp(n, 0, len(b.text)-pos)
	if n == 0 {
		b.mu.Unlock()
		return
	}
	b.text = splice(b.text, pos, n, nil)
	switch {
	case b.cursor >= pos+n:
		b.cursor -= n
	case b.cursor > pos:
		b.cursor = pos
	}
	b.emitLocked(ChangeText)
}

// Backspace deletes the rune before the cursor.
func (b *Buffer) Backspace() {
	b.mu.Lock()
	cur := b.cursor
	b.mu.Unlock()
	if cur > 0 {
		b.Delete(cur-1, 1)
	}
}

// MoveCursor places the cursor at rune offset pos, clamped to the document.
func (b *Buffer) MoveCursor(pos int) {
	b.mu.Lock()
	pos = clamp(pos, 0, len(b.text))
	if pos == b.cursor {
		b.mu.Unlock()
		return
	}
	b.cursor = pos
	b.emitLocked(ChangeCursor)
}

// MoveCursorTo places the cursor at a 0-indexed line and column, clamped to the line.
func (b *Buffer) MoveCursorTo(line, col int) {
	b.mu.Lock()
	pos, cur := 0, 0
	for pos < len(b.text) && cur < line {
		if b.text[pos] == '\n' {
			cur++
		}
		pos++
	}
	end := pos
	for end < len(b.text) && b.text[end] != '\n' {
		end++
	}
	target := clamp(pos+col, pos, end)
	b.mu.Unlock()
	b.MoveCursor(target)
}

// emitLocked snapshots the buffer, releases the lock and notifies subscribers.
func (b *Buffer) emitLocked(kind ChangeKind) {
	ch := Change{Kind: kind, Snapshot: b.snapshotLocked()}
	fns := make([]func(Change), 0, len(b.listeners))
	// Registration order.
	for i := 0; i < b.nextID; i++ {
		if fn, ok := b.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}

func (b *Buffer) snapshotLocked() Snapshot {
	return Snapshot{Text: string(b.text), Cursor: b.cursor}
}

func splice(s []rune, at, remove int, insert []rune) []rune {
	out := make([]rune, 0, len(s)-remove+len(insert))
	out = append(out, s[:at]...)
	out = append(out, insert...)
	return append(out, s[at+remove:]...)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
