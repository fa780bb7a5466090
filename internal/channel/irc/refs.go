package irc

import (
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// maxRefs bounds how many delivered messages stay addressable.
const maxRefs = 512

// refPattern matches the ref appended to delivered messages.
var refPattern = regexp.MustCompile(`\[([0-9a-f]{6})\]\s*$`)

// reactionPattern matches a plain text reaction such as "✅ 1a2b3c".
var reactionPattern = regexp.MustCompile(`^(✅|❌)\x{FE0F}?\s+\[?([0-9a-f]{6})\]?$`)

// refTracker maps the short refs of delivered messages to their chat and,
// once the server echoes them, to the server-assigned msgid.
type refTracker struct {
	mu     sync.Mutex
	chats  map[string]string // ref -> chat
	msgids map[string]string // msgid -> ref
	byRef  map[string]string // ref -> msgid
	order  []string
}

func newRefTracker() *refTracker {
	return &refTracker{
		chats:  make(map[string]string),
		msgids: make(map[string]string),
		byRef:  make(map[string]string),
	}
}

// issue allocates a ref for a message sent to chat.
func (t *refTracker) issue(chat string) string {
	ref := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]

	t.mu.Lock()
	defer t.mu.Unlock()
	t.chats[ref] = chat
	t.order = append(t.order, ref)
	for len(t.order) > maxRefs {
		old := t.order[0]
		t.order = t.order[1:]
		if id, ok := t.byRef[old]; ok {
			delete(t.msgids, id)
		}
		delete(t.byRef, old)
		delete(t.chats, old)
	}
	return ref
}

// bind records the server msgid of an echoed message carrying ref.
func (t *refTracker) bind(ref, msgid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.chats[ref]; !ok {
		return
	}
	t.msgids[msgid] = ref
	t.byRef[ref] = msgid
}

// known reports whether ref was issued and is still tracked.
func (t *refTracker) known(ref string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.chats[ref]
	return ok
}

// refFor resolves a server msgid to a ref.
func (t *refTracker) refFor(msgid string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ref, ok := t.msgids[msgid]
	return ref, ok
}

// msgidFor resolves a ref to the server msgid.
func (t *refTracker) msgidFor(ref string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byRef[ref]
	return id, ok
}

// extractRef returns the ref at the end of a delivered message line.
func extractRef(line string) (string, bool) {
	m := refPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// parseTextReaction recognizes "✅ ref" and "❌ ref" messages.
func parseTextReaction(body string) (emoji, ref string, ok bool) {
	m := reactionPattern.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
