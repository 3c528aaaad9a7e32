// Package secrets holds the key-value map loaded from the secrets file.
// Values are never exposed outside the process except through template
// expansion; only key lists are returned by any API.
package secrets

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Store holds the current key->value map and watches its source file for
// changes so operators can rotate secrets without a restart.
type Store struct {
	path string

	mu     sync.RWMutex
	values map[string]string

	watcher *fsnotify.Watcher
	closeCh chan struct{}
}

// New loads path. It does not start watching the file; call Watch for
// that. A missing file loads as empty rather than failing, since secrets
// are optional.
func New(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]string)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the current value for key and whether it is known.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the sorted set of known secret names. Values are never
// included.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload re-parses the secrets file from disk, replacing the in-memory map
// atomically.
func (s *Store) Reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.values = make(map[string]string)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("open secrets file: %w", err)
	}
	defer f.Close()

	parsed := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			slog.Warn("secrets file: skipping malformed line", "line", lineNo)
			continue
		}
		key := strings.TrimSpace(line[:idx])
		if !isValidKey(key) {
			slog.Warn("secrets file: skipping invalid key", "line", lineNo, "key", key)
			continue
		}
		value := line[idx+1:]
		parsed[key] = value
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan secrets file: %w", err)
	}

	s.mu.Lock()
	s.values = parsed
	s.mu.Unlock()
	return nil
}

func isValidKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// Watch starts an fsnotify watch on the secrets file's directory and
// triggers Reload on every write/create/rename event targeting the file.
// It returns immediately; the watch runs until Close is called.
func (s *Store) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := s.path
	if idx := strings.LastIndexByte(s.path, '/'); idx >= 0 {
		dir = s.path[:idx]
	} else {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch secrets dir: %w", err)
	}

	s.watcher = w
	s.closeCh = make(chan struct{})

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != s.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if err := s.Reload(); err != nil {
						slog.Warn("secrets hot-reload failed", "error", err)
					} else {
						slog.Info("secrets reloaded", "path", s.path)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("secrets watcher error", "error", err)
			case <-s.closeCh:
				return
			}
		}
	}()
	return nil
}

// Close stops the file watch, if any.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.closeCh)
	return s.watcher.Close()
}
