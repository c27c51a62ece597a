package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/getlumos/lumos-sub002/pkg/resolver"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new schema file was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing schema file was modified.
	OpModify
	// OpDelete indicates a schema file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event represents a file system event for one schema file. Path is
// normalized the same way resolved file paths are, so events line up
// with closure entries in the dependency index.
type Event struct {
	Path string
	Op   EventOp
}

// FileWatcher watches schema roots for changes. It uses fsnotify for
// cross-platform file system event monitoring, registers directories
// recursively, and picks up directories created while watching.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	roots   []string
}

// NewFileWatcher creates a new FileWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the given root directories and everything
// below them. Returns an error if any root cannot be watched.
func (fw *FileWatcher) Start(roots ...string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}
	if len(roots) == 0 {
		return fmt.Errorf("no roots to watch")
	}

	fw.roots = roots
	for _, root := range roots {
		if err := fw.addRecursive(root); err != nil {
			// Unregister whatever was added before the failure
			for _, watched := range fw.watcher.WatchList() {
				fw.watcher.Remove(watched)
			}
			return fmt.Errorf("failed to watch root %s: %w", root, err)
		}
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		// Never started (or already stopped); still release the
		// underlying watcher. Closing twice is safe.
		return fw.watcher.Close()
	}
	fw.running = false
	fw.mu.Unlock()

	// Signal shutdown
	close(fw.done)

	// Close the underlying watcher (this will unblock the event loop)
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	// Wait for event processing to finish
	fw.wg.Wait()

	// Close channels
	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel that emits Event notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan Event {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

// addRecursive registers root and every directory below it.
func (fw *FileWatcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fw.watcher.Add(path)
		}
		return nil
	})
}

// processEvents is the main event loop that processes fsnotify events
// and converts them to Event notifications.
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Directories created while watching join the watch set so
			// schema files appearing below them are still seen.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.watcher.Add(event.Name); err != nil {
						select {
						case fw.errors <- err:
						case <-fw.done:
							return
						}
					}
					continue
				}
			}

			if fileEvent, ok := fw.convertEvent(event); ok {
				select {
				case fw.events <- fileEvent:
				case <-fw.done:
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}

			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// convertEvent converts an fsnotify event to an Event.
// Returns (Event, true) if the event should be processed,
// or (Event{}, false) if the event should be ignored.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (Event, bool) {
	// Only schema files matter
	if filepath.Ext(event.Name) != resolver.SchemaExt {
		return Event{}, false
	}

	// Convert fsnotify operation to our EventOp
	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		// Treat rename as delete (the new name will trigger a create)
		op = OpDelete
	default:
		// Ignore chmod and other events
		return Event{}, false
	}

	return Event{
		Path: resolver.CanonicalPath(event.Name),
		Op:   op,
	}, true
}
