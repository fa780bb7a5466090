package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/rpc"
	"github.com/soyeahso/vyrtuous/internal/tools"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// countingStore counts Clear calls.
type countingStore struct {
	*MemoryConversationStore
	clears atomic.Int32
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryConversationStore: NewMemoryConversationStore(0)}
}

func (s *countingStore) Clear(key string) {
	s.clears.Add(1)
	s.MemoryConversationStore.Clear(key)
}

// fakeSender records deliveries.
type fakeSender struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg domain.OutboundMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("m%d", len(f.sent)), nil
}

func (f *fakeSender) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.Body)
	}
	return out
}

type echoInput struct {
	Text string `json:"text"`
}

// testTools returns a registry with an "echo" tool that counts calls.
func testTools(calls *atomic.Int32) *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.New("echo", "Echoes text.", `{"type":"object","properties":{"text":{"type":"string"}}}`,
		func(_ context.Context, in echoInput) (any, error) {
			if calls != nil {
				calls.Add(1)
			}
			return tools.Succeeded("said " + in.Text), nil
		}))
	return reg
}

// countingRPC counts requests by method before handing them to a gateway.
type countingRPC struct {
	next    RPCHandler
	mu      sync.Mutex
	methods map[string]int
	reply   []byte // overrides the gateway when set
}

func newCountingRPC(next RPCHandler) *countingRPC {
	return &countingRPC{next: next, methods: make(map[string]int)}
}

func (c *countingRPC) Handle(ctx context.Context, raw []byte) []byte {
	var req struct {
		Method string `json:"method"`
	}
	_ = json.Unmarshal(raw, &req)
	c.mu.Lock()
	c.methods[req.Method]++
	reply := c.reply
	c.mu.Unlock()
	if reply != nil && req.Method == rpc.MethodToolsCall {
		return reply
	}
	return c.next.Handle(ctx, raw)
}

func (c *countingRPC) count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.methods[method]
}
