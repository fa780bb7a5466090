package feedback

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/domain"
)

// Roles of the two rows written per approved correction.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Row is one line of the correction log.
type Row struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IOError reports a failed read or write of the correction log.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("feedback %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Log is a JSON Lines file of approved original/correction pairs. Every
// mutation reads the whole file and rewrites it.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates a Log backed by path. The file is created on first write.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Approve appends the entry as a user row followed by an assistant row.
// Approving the same entry again appends the pair again.
func (l *Log) Approve(entry domain.FeedbackEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.read()
	if err != nil {
		return err
	}
	for _, row := range []Row{{RoleUser, entry.Original}, {RoleAssistant, entry.Correction}} {
		b, err := json.Marshal(row)
		if err != nil {
			return &IOError{Op: "encode", Path: l.path, Err: err}
		}
		lines = append(lines, string(b))
	}
	return l.write(lines)
}

// Reject removes the rows matching entry and returns how many were
// removed. A user row holding the original immediately followed by an
// assistant row holding the correction is removed as a pair; any other
// line containing both texts verbatim is removed on its own. The file is
// rewritten only when something was removed.
func (l *Log) Reject(entry domain.FeedbackEntry) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.read()
	if err != nil {
		return 0, err
	}

	kept := make([]string, 0, len(lines))
	removed := 0
	for i := 0; i < len(lines); i++ {
		if i+1 < len(lines) && rowIs(lines[i], RoleUser, entry.Original) && rowIs(lines[i+1], RoleAssistant, entry.Correction) {
			removed += 2
			i++
			continue
		}
		if containsBoth(lines[i], entry) {
			removed++
			continue
		}
		kept = append(kept, lines[i])
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, l.write(kept)
}

// Pairs returns the approved entries in file order. Lines that are not a
// user row followed by an assistant row are skipped.
func (l *Log) Pairs() ([]domain.FeedbackEntry, error) {
	l.mu.Lock()
	lines, err := l.read()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var pairs []domain.FeedbackEntry
	for i := 0; i+1 < len(lines); i++ {
		var u, a Row
		if json.Unmarshal([]byte(lines[i]), &u) != nil || u.Role != RoleUser {
			continue
		}
		if json.Unmarshal([]byte(lines[i+1]), &a) != nil || a.Role != RoleAssistant {
			continue
		}
		pairs = append(pairs, domain.FeedbackEntry{Original: u.Content, Correction: a.Content})
		i++
	}
	return pairs, nil
}

func rowIs(line, role, content string) bool {
	var r Row
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return false
	}
	return r.Role == role && r.Content == content
}

// containsBoth reports whether a row's content, or an undecodable line,
// holds both texts of entry.
func containsBoth(line string, entry domain.FeedbackEntry) bool {
	if entry.Original == "" || entry.Correction == "" {
		return false
	}
	text := line
	var r Row
	if err := json.Unmarshal([]byte(line), &r); err == nil {
		text = r.Content
	}
	return strings.Contains(text, entry.Original) && strings.Contains(text, entry.Correction)
}

// read returns the non-blank lines of the log. A missing file is empty.
func (l *Log) read() ([]string, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &IOError{Op: "open", Path: l.path, Err: err}
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &IOError{Op: "read", Path: l.path, Err: err}
	}
	return lines, nil
}

// write replaces the log with lines through a temp file and rename.
func (l *Log) write(lines []string) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(dir, ".corrections-*.jsonl")
	if err != nil {
		return &IOError{Op: "create", Path: l.path, Err: err}
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return &IOError{Op: "write", Path: l.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "write", Path: l.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return &IOError{Op: "rename", Path: l.path, Err: err}
	}
	return nil
}
