// Package signals gives operators file-based control over a running
// session. Touching files under .foreman/signals/ stops the session or
// kills individual agents without needing the orchestrator's terminal.
package signals

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// StopFile is the signal file name that cancels the whole session.
const StopFile = "stop"

// KillPrefix prefixes signal files that kill one agent: kill-<agent-id>.
const KillPrefix = "kill-"

// Handler receives decoded operator signals.
type Handler interface {
	// Stop requests cancellation of the whole session.
	Stop()
	// KillAgent requests termination of one agent.
	KillAgent(agentID string)
}

// Watcher monitors a project's signal directory.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	handler Handler
	logf    func(format string, args ...interface{})
	done    chan struct{}
}

// Dir returns the signal directory for a project root.
func Dir(projectRoot string) string {
	return filepath.Join(projectRoot, ".foreman", "signals")
}

// NewWatcher creates and starts a signal watcher for the project. The
// directory is created if absent. Signal files already present at startup
// are honored, so a stop left by a previous run is not silently ignored.
func NewWatcher(projectRoot string, handler Handler, logf func(format string, args ...interface{})) (*Watcher, error) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	dir := Dir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		dir:     dir,
		watcher: fsw,
		handler: handler,
		logf:    logf,
		done:    make(chan struct{}),
	}

	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			w.dispatch(e.Name())
		}
	}

	go w.watch()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.dispatch(filepath.Base(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logf("[signals] watch error: %v", err)
		}
	}
}

// dispatch decodes one signal file name and consumes the file.
func (w *Watcher) dispatch(name string) {
	switch {
	case name == StopFile:
		w.logf("[signals] stop requested")
		w.consume(name)
		w.handler.Stop()
	case strings.HasPrefix(name, KillPrefix):
		agentID := strings.TrimPrefix(name, KillPrefix)
		if agentID == "" {
			return
		}
		w.logf("[signals] kill requested for agent %s", agentID)
		w.consume(name)
		w.handler.KillAgent(agentID)
	}
}

// consume deletes a processed signal file so it does not re-fire on the
// next run.
func (w *Watcher) consume(name string) {
	if err := os.Remove(filepath.Join(w.dir, name)); err != nil && !os.IsNotExist(err) {
		w.logf("[signals] remove %s: %v", name, err)
	}
}

// RequestStop writes a stop signal for the project, for use by a separate
// foreman process.
func RequestStop(projectRoot string) error {
	return touch(filepath.Join(Dir(projectRoot), StopFile))
}

// RequestKill writes a kill signal for one agent.
func RequestKill(projectRoot, agentID string) error {
	return touch(filepath.Join(Dir(projectRoot), KillPrefix+agentID))
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0644)
}
