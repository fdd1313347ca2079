package mux

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pi-chan/claudeye/internal/logging"
)

var versionLog = logging.ForComponent(logging.CompVersions)

// DefaultVersionTTL is how long a loaded version table is trusted before
// the versions directory is listed again.
const DefaultVersionTTL = 30 * time.Second

// VersionTable maps version-qualified binary names back to a logical command.
//
// Some installers make the command a symlink into a versions directory
// (e.g. ~/.local/bin/claude -> ~/.local/share/claude/versions/2.1.50), and
// tmux then reports "2.1.50" as the pane's current command. The table holds
// the entries of that directory; any of them resolves to the logical name.
type VersionTable struct {
	command string
	ttl     time.Duration

	// lookPath locates the command; replaced in tests.
	lookPath func(string) (string, error)
	now      func() time.Time

	once sync.Once
	mu   sync.RWMutex
	dir  string
	// names is replaced wholesale on refresh, never mutated.
	names       map[string]struct{}
	refreshedAt time.Time
}

// NewVersionTable creates a table for command. The versions directory is
// located on first use by following the command's symlink on PATH.
func NewVersionTable(command string, ttl time.Duration) *VersionTable {
	if ttl <= 0 {
		ttl = DefaultVersionTTL
	}
	return &VersionTable{
		command:  command,
		ttl:      ttl,
		lookPath: exec.LookPath,
		now:      time.Now,
	}
}

// NewVersionTableForDir creates a table that reads the given versions
// directory instead of locating it from PATH.
func NewVersionTableForDir(command, dir string, ttl time.Duration) *VersionTable {
	v := NewVersionTable(command, ttl)
	v.lookPath = nil
	v.dir = dir
	return v
}

// Command returns the logical command name.
func (v *VersionTable) Command() string {
	return v.command
}

// Dir returns the versions directory, or "" if none was found.
func (v *VersionTable) Dir() string {
	v.init()
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dir
}

// Resolve returns the logical command for a raw reported command name.
// Unknown names are returned unchanged.
func (v *VersionTable) Resolve(raw string) string {
	if raw == v.command {
		return raw
	}
	v.init()

	v.mu.RLock()
	names := v.names
	expired := v.dir != "" && v.now().Sub(v.refreshedAt) >= v.ttl
	v.mu.RUnlock()

	if expired {
		if err := v.Refresh(); err != nil {
			versionLog.Debug("version_refresh_failed", slog.String("error", err.Error()))
		}
		v.mu.RLock()
		names = v.names
		v.mu.RUnlock()
	}

	if _, ok := names[raw]; ok {
		return v.command
	}
	return raw
}

// Refresh re-reads the versions directory. On failure the previous entries
// are kept.
func (v *VersionTable) Refresh() error {
	v.mu.RLock()
	dir := v.dir
	v.mu.RUnlock()
	if dir == "" {
		return nil
	}

	names, err := readVersionEntries(dir)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.refreshedAt = v.now()
	if err != nil {
		return err
	}
	v.names = names
	return nil
}

// Watch refreshes the table whenever the versions directory changes, until
// ctx is cancelled. It returns immediately if there is no versions directory.
func (v *VersionTable) Watch(ctx context.Context) error {
	dir := v.Dir()
	if dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("versions watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := v.Refresh(); err != nil {
					versionLog.Warn("version_refresh_failed", slog.String("dir", dir), slog.String("error", err.Error()))
					continue
				}
				versionLog.Debug("versions_changed", slog.String("event", event.String()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				versionLog.Warn("versions_watcher_error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

func (v *VersionTable) init() {
	v.once.Do(func() {
		v.mu.Lock()
		if v.dir == "" && v.lookPath != nil {
			v.dir = resolveVersionsDir(v.command, v.lookPath)
		}
		dir := v.dir
		v.mu.Unlock()

		if dir == "" {
			versionLog.Debug("no_versions_dir", slog.String("command", v.command))
			return
		}
		if err := v.Refresh(); err != nil {
			versionLog.Debug("version_load_failed", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	})
}

// resolveVersionsDir finds command on PATH and returns the directory its
// symlink points into. Returns "" when the command is not a symlink.
func resolveVersionsDir(command string, lookPath func(string) (string, error)) string {
	path, err := lookPath(command)
	if err != nil {
		return ""
	}
	target, err := os.Readlink(path)
	if err != nil {
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Dir(target)
}

// readVersionEntries lists the entry names of dir.
func readVersionEntries(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read versions dir: %w", err)
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}
	return names, nil
}
