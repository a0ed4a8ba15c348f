package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"selfheal/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// FileStore keeps the corpus as JSON Lines: one record per line, written with
// a single O_APPEND write so concurrent appenders never interleave a record.
// A legacy file holding one JSON array is read transparently and converted to
// JSON Lines on the first append.
type FileStore struct {
	path string

	mu       sync.Mutex
	migrated bool
}

// NewFileStore prepares a file-backed store; the file is created lazily.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the corpus file path.
func (s *FileStore) Path() string {
	return s.path
}

// Append adds one record. A zero RecordedAt is stamped with the current time.
func (s *FileStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal training record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.migrated {
		if err := s.migrateLegacyLocked(); err != nil {
			return err
		}
		s.migrated = true
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open corpus: %w", err)
	}
	if err := dropTornTail(f); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append training record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close corpus: %w", err)
	}

	logging.StoreDebug("Appended training record: %s -> %s", rec.OriginalLocator, rec.HealedLocator)
	return nil
}

// dropTornTail truncates a partial record left by a writer that died
// mid-append, so the next record starts on its own line. The file must hold
// JSON Lines.
func dropTornTail(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat corpus: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return fmt.Errorf("failed to read corpus tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}

	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil {
		return fmt.Errorf("failed to read corpus: %w", err)
	}
	keep := int64(bytes.LastIndexByte(data, '\n') + 1)
	if err := f.Truncate(keep); err != nil {
		return fmt.Errorf("failed to drop torn corpus line: %w", err)
	}
	logging.Get(logging.CategoryStore).Warn("Dropped torn corpus tail (%d bytes) before append", size-keep)
	return nil
}

// LoadAll reads the whole corpus. A missing file is an empty corpus.
func (s *FileStore) LoadAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return decodeCorpus(data)
}

// Close is a no-op; files are opened per operation.
func (s *FileStore) Close() error {
	return nil
}

// migrateLegacyLocked rewrites a JSON-array corpus as JSON Lines via a
// temp file and rename. Caller must hold s.mu.
func (s *FileStore) migrateLegacyLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read corpus: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}

	var records []Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return fmt.Errorf("failed to parse legacy corpus: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode training record: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write migrated corpus: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace legacy corpus: %w", err)
	}
	logging.Store("Converted legacy corpus %s to JSON Lines (%d records)", s.path, len(records))
	return nil
}

func decodeCorpus(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("failed to parse legacy corpus: %w", err)
		}
		return records, nil
	}

	var records []Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn final line means a writer died mid-append; everything
			// before it is intact.
			if lineNo == countLines(data) && !bytes.HasSuffix(data, []byte("\n")) {
				logging.Get(logging.CategoryStore).Warn("Ignoring torn final corpus line %d: %v", lineNo, err)
				break
			}
			return nil, fmt.Errorf("corpus line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}
	return records, nil
}

func countLines(data []byte) int {
	n := bytes.Count(data, []byte("\n"))
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		n++
	}
	return n
}

// Follow streams records appended after the call. The returned channel is
// closed when ctx is done or the watcher fails.
func (s *FileStore) Follow(ctx context.Context) (<-chan Record, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: the corpus may not exist yet, and legacy migration
	// replaces it by rename.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch corpus directory: %w", err)
	}

	var offset int64
	if info, err := os.Stat(s.path); err == nil {
		offset = info.Size()
	}

	out := make(chan Record)
	go func() {
		defer close(out)
		defer watcher.Close()

		target := filepath.Clean(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				records, next, err := readFrom(s.path, offset)
				if err != nil {
					logging.Get(logging.CategoryStore).Warn("Follow: %v", err)
					continue
				}
				offset = next
				for _, rec := range records {
					select {
					case out <- rec:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Get(logging.CategoryStore).Error("Follow: watcher error: %v", err)
				return
			}
		}
	}()
	return out, nil
}

// readFrom decodes complete lines after offset and returns the offset just
// past the last complete line. A file smaller than offset was replaced, so
// reading restarts at zero.
func readFrom(path string, offset int64) ([]Record, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, offset, err
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, offset, nil
	}
	records, err := decodeCorpus(data[:end+1])
	if err != nil {
		return nil, offset + int64(end+1), err
	}
	return records, offset + int64(end+1), nil
}
