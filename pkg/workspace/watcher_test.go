package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewFileWatcher verifies that creating a new FileWatcher succeeds.
func TestNewFileWatcher(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
}

// TestFileWatcher_StartStop verifies that the watcher can start and stop cleanly.
func TestFileWatcher_StartStop(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
}

// TestFileWatcher_StartAlreadyRunning verifies that starting an already running watcher fails.
func TestFileWatcher_StartAlreadyRunning(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("First Start() failed: %v", err)
	}

	if err := fw.Start(tmpDir); err == nil {
		t.Error("Second Start() should fail when watcher is already running")
	}
}

// TestFileWatcher_StartNoRoots verifies that starting without roots fails.
func TestFileWatcher_StartNoRoots(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(); err == nil {
		t.Error("Start() without roots should fail")
	}
}

// TestFileWatcher_StartNonexistentDirectory verifies that starting with
// a nonexistent root fails.
func TestFileWatcher_StartNonexistentDirectory(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start("/nonexistent/schemas"); err == nil {
		t.Error("Start() should fail with a nonexistent root")
	}
}

// TestFileWatcher_SchemaFileCreated verifies that creating a schema file triggers an event.
func TestFileWatcher_SchemaFileCreated(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	schemaPath := filepath.Join(tmpDir, "player.lum")
	if err := os.WriteFile(schemaPath, []byte("struct Player { wallet: Key }"), 0644); err != nil {
		t.Fatalf("Failed to write schema file: %v", err)
	}

	select {
	case event := <-fw.Events():
		if event.Op != OpCreate {
			t.Errorf("Expected OpCreate, got %v", event.Op)
		}
		if filepath.Base(event.Path) != "player.lum" {
			t.Errorf("Expected player.lum, got %s", filepath.Base(event.Path))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for create event")
	}
}

// TestFileWatcher_SchemaFileModified verifies that modifying a schema file triggers an event.
func TestFileWatcher_SchemaFileModified(t *testing.T) {
	tmpDir := t.TempDir()

	schemaPath := filepath.Join(tmpDir, "player.lum")
	if err := os.WriteFile(schemaPath, []byte("struct Player { wallet: Key }"), 0644); err != nil {
		t.Fatalf("Failed to write schema file: %v", err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Give watcher time to stabilize
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(schemaPath, []byte("struct Player { wallet: Key, score: u64 }"), 0644); err != nil {
		t.Fatalf("Failed to update schema file: %v", err)
	}

	select {
	case event := <-fw.Events():
		if event.Op != OpModify {
			t.Errorf("Expected OpModify, got %v", event.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for modify event")
	}
}

// TestFileWatcher_SchemaFileDeleted verifies that deleting a schema file triggers an event.
func TestFileWatcher_SchemaFileDeleted(t *testing.T) {
	tmpDir := t.TempDir()

	schemaPath := filepath.Join(tmpDir, "player.lum")
	if err := os.WriteFile(schemaPath, []byte("struct Player { wallet: Key }"), 0644); err != nil {
		t.Fatalf("Failed to write schema file: %v", err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Give watcher time to stabilize
	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(schemaPath); err != nil {
		t.Fatalf("Failed to delete schema file: %v", err)
	}

	select {
	case event := <-fw.Events():
		if event.Op != OpDelete {
			t.Errorf("Expected OpDelete, got %v", event.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for delete event")
	}
}

// TestFileWatcher_OtherExtensionsIgnored verifies that non-schema files are ignored.
func TestFileWatcher_OtherExtensionsIgnored(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	txtPath := filepath.Join(tmpDir, "readme.txt")
	if err := os.WriteFile(txtPath, []byte("notes"), 0644); err != nil {
		t.Fatalf("Failed to write txt file: %v", err)
	}

	// Should not receive any event (or at least not timeout waiting)
	select {
	case event := <-fw.Events():
		t.Errorf("Should not receive event for non-schema file, got: %+v", event)
	case <-time.After(500 * time.Millisecond):
		// Expected - no event for other extensions
	}
}

// TestFileWatcher_NestedDirectories verifies that schema files in
// subdirectories existing at start are watched.
func TestFileWatcher_NestedDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "common", "types")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatalf("Failed to create nested dir: %v", err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	schemaPath := filepath.Join(nestedDir, "badge.lum")
	if err := os.WriteFile(schemaPath, []byte("struct Badge { id: u32 }"), 0644); err != nil {
		t.Fatalf("Failed to write schema file: %v", err)
	}

	select {
	case event := <-fw.Events():
		if filepath.Base(event.Path) != "badge.lum" {
			t.Errorf("Expected badge.lum, got %s", filepath.Base(event.Path))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for nested create event")
	}
}

// TestFileWatcher_NewDirectoryWatched verifies that directories created
// while watching are added to the watch set.
func TestFileWatcher_NewDirectoryWatched(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	newDir := filepath.Join(tmpDir, "imported")
	if err := os.Mkdir(newDir, 0755); err != nil {
		t.Fatalf("Failed to create new dir: %v", err)
	}

	// Give the watcher time to pick up the new directory
	time.Sleep(200 * time.Millisecond)

	schemaPath := filepath.Join(newDir, "shared.lum")
	if err := os.WriteFile(schemaPath, []byte("struct Shared { id: u64 }"), 0644); err != nil {
		t.Fatalf("Failed to write schema file: %v", err)
	}

	select {
	case event := <-fw.Events():
		if filepath.Base(event.Path) != "shared.lum" {
			t.Errorf("Expected shared.lum, got %s", filepath.Base(event.Path))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for event from new directory")
	}
}

// TestFileWatcher_MultipleEvents verifies that multiple file operations are tracked.
func TestFileWatcher_MultipleEvents(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	names := []string{"a.lum", "b.lum", "c.lum"}
	for _, name := range names {
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, []byte("struct X { id: u8 }"), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", name, err)
		}
	}

	// Collect events (with timeout). Creates may be followed by writes
	// on some platforms, so match on distinct paths.
	seen := make(map[string]bool)
	timeout := time.After(3 * time.Second)
	for len(seen) < len(names) {
		select {
		case event := <-fw.Events():
			seen[filepath.Base(event.Path)] = true
		case <-timeout:
			t.Fatalf("Timeout waiting for events. Got %d/%d paths", len(seen), len(names))
		}
	}

	for _, name := range names {
		if !seen[name] {
			t.Errorf("Missing event for %s", name)
		}
	}
}

// TestFileWatcher_StopClosesChannels verifies that Stop() closes the event channels.
func TestFileWatcher_StopClosesChannels(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	events := fw.Events()
	errs := fw.Errors()

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("Events channel should be closed after Stop()")
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout verifying events channel closure")
	}

	select {
	case _, ok := <-errs:
		if ok {
			t.Error("Errors channel should be closed after Stop()")
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout verifying errors channel closure")
	}
}

// TestFileWatcher_StopTwice verifies that stopping twice is safe.
func TestFileWatcher_StopTwice(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("First Stop() failed: %v", err)
	}
	if err := fw.Stop(); err != nil {
		t.Fatalf("Second Stop() failed: %v", err)
	}
}

// TestEventOp_String verifies the String() method for EventOp.
func TestEventOp_String(t *testing.T) {
	tests := []struct {
		op       EventOp
		expected string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{EventOp(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.expected {
			t.Errorf("EventOp(%d).String() = %q, want %q", tt.op, got, tt.expected)
		}
	}
}

// TestFileWatcher_ConcurrentAccess verifies thread safety of watcher operations.
func TestFileWatcher_ConcurrentAccess(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(tmpDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = fw.IsRunning()
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
