package editor

import (
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// AutoSaver persists the latest scheduled content once edits go quiet.
// Saves never run concurrently and always run in scheduling order.
type AutoSaver struct {
	debounced func(f func())
	save      func(content string) error

	saveMu  sync.Mutex
	mu      sync.Mutex
	pending *string
}

func NewAutoSaver(after time.Duration, save func(content string) error) *AutoSaver {
	return &AutoSaver{
		debounced: debounce.New(after),
		save:      save,
	}
}

// Schedule records content as the next value to save and restarts the quiet period.
func (a *AutoSaver) Schedule(content string) {
	a.mu.Lock()
	a.pending = &content
	a.mu.Unlock()
	a.debounced(a.fire)
}

// Pending reports whether a save is waiting for the quiet period.
func (a *AutoSaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Flush saves any pending content immediately.
func (a *AutoSaver) Flush() error {
	a.debounced(func() {})
	return a.run()
}

// Cancel drops pending content without saving it.
func (a *AutoSaver) Cancel() {
	a.debounced(func() {})
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
}

func (a *AutoSaver) fire() {
	if err := a.run(); err != nil {
		log.Printf("[Editor] Autosave failed: %v", err)
	}
}

func (a *AutoSaver) run() error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	content := a.pending
	a.pending = nil
	a.mu.Unlock()

	if content == nil {
		return nil
	}
	if err := a.save(*content); err != nil {
		// Keep the content for the next Flush unless newer content arrived.
		a.mu.Lock()
		if a.pending == nil {
			a.pending = content
		}
		a.mu.Unlock()
		return err
	}
	return nil
}
