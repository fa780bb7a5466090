package tail

import (
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/soyeahso/vyrtuous/internal/logging"
)

// Batch is the text appended to a file since the previous read.
type Batch struct {
	Blocks []string
	From   int64 // offset the read started at
	To     int64 // offset after the read
	Reset  bool  // the file shrank and was re-read from the start
}

// Tailer reads a file incrementally from a persisted offset.
type Tailer struct {
	path    string
	cursors CursorStore
	log     *logging.Logger

	mu sync.Mutex
	// heldAt is the offset where the last poll held back a partial
	// character, or -1.
	heldAt int64
}

// NewTailer creates a Tailer for path.
func NewTailer(path string, cursors CursorStore, log *logging.Logger) *Tailer {
	return &Tailer{path: path, cursors: cursors, log: log.Sub("tail"), heldAt: -1}
}

// Path returns the tailed file.
func (t *Tailer) Path() string { return t.path }

// Poll reads everything past the saved offset and advances it.
func (t *Tailer) Poll() (Batch, error) {
	return t.read(true)
}

// Peek reads like Poll without saving the new offset.
func (t *Tailer) Peek() (Batch, error) {
	return t.read(false)
}

func (t *Tailer) read(commit bool) (Batch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	offset, err := t.cursors.Load(t.path)
	if err != nil {
		return Batch{}, &IOError{Op: "load cursor", Path: t.path, Err: err}
	}

	f, err := os.Open(t.path)
	if err != nil {
		return Batch{}, &IOError{Op: "open", Path: t.path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Batch{}, &IOError{Op: "stat", Path: t.path, Err: err}
	}

	b := Batch{From: offset}
	if info.Size() < offset {
		t.log.Info().Str("path", t.path).Int64("offset", offset).Int64("size", info.Size()).Msg("file shrank, rereading from start")
		b.From, b.Reset = 0, true
	}

	if _, err := f.Seek(b.From, io.SeekStart); err != nil {
		return Batch{}, &IOError{Op: "seek", Path: t.path, Err: err}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return Batch{}, &IOError{Op: "read", Path: t.path, Err: err}
	}
	// A partial character is held back while the writer may still finish
	// it. Once a poll finds nothing but the same held bytes, they are read
	// as they are.
	held := int64(-1)
	if n := incompleteSuffix(data); n > 0 && (n < len(data) || t.heldAt != b.From) {
		data = data[:len(data)-n]
		held = b.From + int64(len(data))
	}
	b.To = b.From + int64(len(data))
	if commit {
		t.heldAt = held
	}

	if commit && (b.To != offset || b.Reset) {
		if err := t.cursors.Save(t.path, b.To); err != nil {
			return Batch{}, &IOError{Op: "save cursor", Path: t.path, Err: err}
		}
	}

	b.Blocks = Segment(Decode(data))
	t.log.Debug().Str("path", t.path).Int64("from", b.From).Int64("to", b.To).Int("blocks", len(b.Blocks)).Msg("tail read")
	return b, nil
}

// Decode returns data as text. Each byte that does not start a valid UTF-8
// sequence is read as ISO-8859-1; valid sequences around it are kept.
func Decode(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var sb strings.Builder
	sb.Grow(len(data) + len(data)/2)
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			r = charmap.ISO8859_1.DecodeByte(data[0])
		}
		sb.WriteRune(r)
		data = data[size:]
	}
	return sb.String()
}

// incompleteSuffix returns the length of a UTF-8 sequence cut short at the
// end of data: a lead byte followed by fewer continuation bytes than it
// announces. Anything else, a Latin-1 byte after a full sequence included,
// returns 0.
func incompleteSuffix(data []byte) int {
	for k := 1; k < utf8.UTFMax && k <= len(data); k++ {
		c := data[len(data)-k]
		if c < utf8.RuneSelf {
			return 0
		}
		if !utf8.RuneStart(c) {
			continue
		}
		if need := sequenceLen(c); need > k {
			return k
		}
		return 0
	}
	return 0
}

// sequenceLen is the encoded length a UTF-8 lead byte announces, or 0 for
// bytes that never lead a valid sequence.
func sequenceLen(lead byte) int {
	switch {
	case lead >= 0xC2 && lead <= 0xDF:
		return 2
	case lead >= 0xE0 && lead <= 0xEF:
		return 3
	case lead >= 0xF0 && lead <= 0xF4:
		return 4
	default:
		return 0
	}
}

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

// Segment splits text on blank lines and returns the trimmed, non-empty
// blocks.
func Segment(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var blocks []string
	for _, part := range blankLineRe.Split(text, -1) {
		if s := strings.TrimSpace(part); s != "" {
			blocks = append(blocks, s)
		}
	}
	return blocks
}
