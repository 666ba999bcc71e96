package app

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"time"

	"layer-composer/internal/logging"
)

// AutosaveFile is the name of the autosave document inside the autosave
// directory.
const AutosaveFile = "autosave.json"

// Autosaver periodically writes a modified session to disk so a crash does
// not lose the composition.
type Autosaver struct {
	session       *Session
	path          string
	checkInterval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	lastRev int
	onSaved func(path string) // Called after every write
}

// NewAutosaver creates an autosaver writing into dir.
func NewAutosaver(session *Session, dir string, checkInterval time.Duration) *Autosaver {
	return &Autosaver{
		session:       session,
		path:          filepath.Join(dir, AutosaveFile),
		checkInterval: checkInterval,
		lastRev:       -1,
	}
}

// Path returns the autosave document path.
func (a *Autosaver) Path() string {
	return a.path
}

// OnSaved sets the callback invoked after each write. The callback is
// called from a background goroutine.
func (a *Autosaver) OnSaved(callback func(path string)) {
	a.mu.Lock()
	a.onSaved = callback
	a.mu.Unlock()
}

// Start begins watching the session in a background goroutine.
func (a *Autosaver) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		return
	}
	// Fresh channel in case we're restarting
	a.stopCh = make(chan struct{})
	go a.watchLoop(a.stopCh)
}

// Stop stops the watcher goroutine.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
}

func (a *Autosaver) watchLoop(stopCh chan struct{}) {
	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := a.SaveIfChanged(); err != nil {
				logging.Logger().Warn("autosave failed", "path", a.path, "err", err)
			}
		}
	}
}

// SaveIfChanged writes the session when it is open, modified and has
// changed since the last write. It reports whether it wrote.
func (a *Autosaver) SaveIfChanged() (bool, error) {
	s := a.session
	rev := s.Revision()
	a.mu.Lock()
	unchanged := rev == a.lastRev
	a.mu.Unlock()
	if unchanged || !s.IsOpen() || !s.Modified() {
		return false, nil
	}

	var buf bytes.Buffer
	if err := s.Document().Encode(&buf); err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return false, err
	}
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return false, err
	}

	a.mu.Lock()
	a.lastRev = rev
	cb := a.onSaved
	a.mu.Unlock()
	logging.Logger().Debug("autosaved", "path", a.path, "revision", rev)
	if cb != nil {
		cb(a.path)
	}
	return true, nil
}

// Discard removes the autosave document, e.g. after an explicit save.
func (a *Autosaver) Discard() error {
	err := os.Remove(a.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
