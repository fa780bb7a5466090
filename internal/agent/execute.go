package agent

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/llm"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/rpc"
	"github.com/soyeahso/vyrtuous/internal/tools"
)

// RPCHandler serves raw JSON-RPC requests.
type RPCHandler interface {
	Handle(ctx context.Context, raw []byte) []byte
}

// Executor dispatches pending tool calls through the RPC gateway and
// records their results.
type Executor struct {
	rpc     RPCHandler
	store   ConversationStore
	hooks   *hooks.Manager
	workers chan struct{}
	log     *logging.Logger

	initMu      sync.Mutex
	initialized map[string]bool

	// appendMu keeps each echo and result pair adjacent in the store.
	appendMu sync.Mutex
}

// NewExecutor creates an Executor with at most workers concurrent
// dispatches.
func NewExecutor(h RPCHandler, store ConversationStore, workers int, hm *hooks.Manager, log *logging.Logger) *Executor {
	if workers <= 0 {
		workers = 1
	}
	return &Executor{
		rpc:         h,
		store:       store,
		hooks:       hm,
		workers:     make(chan struct{}, workers),
		log:         log.Sub("execute"),
		initialized: make(map[string]bool),
	}
}

// Execute runs every call in out concurrently and waits for all of them.
// It returns the number of calls dispatched.
func (e *Executor) Execute(ctx context.Context, key string, out Outcome) int {
	if len(out.Calls) == 0 || out.FinishReason == "" || llm.IsMalformed(out.FinishReason) {
		return 0
	}
	if err := e.initialize(ctx, key); err != nil {
		e.log.Warn().Err(err).Str("session", key).Msg("initialize failed")
	}

	var (
		wg         sync.WaitGroup
		dispatched int
	)
	for _, call := range out.Calls {
		if strings.TrimSpace(call.Name) == "" || emptyArguments(call.Arguments) {
			e.log.Debug().Str("tool", call.Name).Msg("skipping call without name or arguments")
			continue
		}
		dispatched++
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case e.workers <- struct{}{}:
			case <-ctx.Done():
				e.record(key, call, failedResult(call, ctx.Err().Error()))
				return
			}
			defer func() { <-e.workers }()
			e.record(key, call, e.dispatch(ctx, key, call))
		}()
	}
	wg.Wait()
	return dispatched
}

// Initialized reports whether the handshake ran for a session.
func (e *Executor) Initialized(key string) bool {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	return e.initialized[key]
}

func (e *Executor) initialize(ctx context.Context, key string) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.initialized[key] {
		return nil
	}

	req, err := rpc.NewInitializeRequest(key)
	if err != nil {
		return err
	}
	if _, err := rpc.DecodeResponse(e.rpc.Handle(ctx, req)); err != nil {
		return err
	}
	e.initialized[key] = true
	e.log.Debug().Str("session", key).Msg("session initialized")
	return nil
}

func (e *Executor) dispatch(ctx context.Context, key string, call domain.PendingToolCall) domain.ToolInvocationResult {
	req, err := rpc.NewCallRequest(key, call)
	if err != nil {
		return failedResult(call, err.Error())
	}
	res, err := rpc.DecodeCallResult(e.rpc.Handle(ctx, req))
	if err != nil {
		e.log.Warn().Err(err).Str("tool", call.Name).Msg("tool call failed")
		return failedResult(call, err.Error())
	}
	return res
}

func (e *Executor) record(key string, call domain.PendingToolCall, res domain.ToolInvocationResult) {
	e.appendMu.Lock()
	if res.EchoedCall != "" {
		e.store.Append(key, domain.NewAssistantText(res.EchoedCall))
	}
	e.store.Append(key, domain.NewToolResult(res))
	e.appendMu.Unlock()

	e.hooks.Emit(context.Background(), hooks.EventToolCall, map[string]any{
		"session": key,
		"tool":    call.Name,
		"success": res.Success,
	})
}

func failedResult(call domain.PendingToolCall, msg string) domain.ToolInvocationResult {
	return domain.ToolInvocationResult{
		Success:    false,
		Message:    "TOOL: [" + call.Name + "] Error: " + msg,
		EchoedCall: tools.Echo(call.Name, call.Arguments),
	}
}

// emptyArguments reports whether args carries nothing to bind.
func emptyArguments(args []byte) bool {
	switch string(bytes.TrimSpace(args)) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}
