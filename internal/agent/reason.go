package agent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/llm"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// OutcomeKind classifies a reasoning step.
type OutcomeKind int

const (
	// OutcomeText means the model answered in prose.
	OutcomeText OutcomeKind = iota
	// OutcomeToolCalls means the model requested one or more tools.
	OutcomeToolCalls
	// OutcomeMalformed means the provider reported a broken native call.
	OutcomeMalformed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeText:
		return "text"
	case OutcomeToolCalls:
		return "tool_calls"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one reasoning step.
type Outcome struct {
	Kind         OutcomeKind
	Calls        []domain.PendingToolCall
	FinishReason string
	ResponseID   string
	Usage        llm.Usage
	// Text is the prose answer to keep, empty when tools were requested.
	Text string
}

// Turn is the input of one reasoning step.
type Turn struct {
	SessionKey string
	Surface    string
	// Directive is sent verbatim when the session has no continuation yet.
	Directive string
}

// ReasonerConfig selects the model a Reasoner calls.
type ReasonerConfig struct {
	Provider    string
	Model       string
	RequestType string
	Stream      bool
}

// Reasoner runs the model once per turn and turns its answer into tool
// calls or stored text.
type Reasoner struct {
	cfg     ReasonerConfig
	client  llm.Client
	catalog *llm.Catalog
	store   ConversationStore
	tools   []llm.ToolDefinition
	log     *logging.Logger
}

// NewReasoner creates a Reasoner.
func NewReasoner(cfg ReasonerConfig, client llm.Client, catalog *llm.Catalog, store ConversationStore, tools []llm.ToolDefinition, log *logging.Logger) *Reasoner {
	if catalog == nil {
		catalog = llm.NewCatalog(config.ModelConfig{})
	}
	return &Reasoner{
		cfg:     cfg,
		client:  client,
		catalog: catalog,
		store:   store,
		tools:   tools,
		log:     log.Sub("reason"),
	}
}

// Step calls the model for one turn. It only reads the store; the caller
// saves the accepted outcome with Commit. Provider errors are returned for
// the supervisor to classify.
func (r *Reasoner) Step(ctx context.Context, turn Turn) (Outcome, error) {
	key := turn.SessionKey
	continuation := r.store.Continuation(key)

	instructions := BuildSystemPrompt(PromptConfig{
		Instructions: r.catalog.ResolveInstructions(r.cfg.Provider, turn.Surface),
		Surface:      turn.Surface,
		Tools:        r.tools,
	})
	req := llm.CompletionRequest{
		Model:        r.cfg.Model,
		Instructions: instructions,
		RequestType:  r.cfg.RequestType,
		Endpoint:     r.catalog.ResolveEndpoint(r.cfg.Provider, turn.Surface, r.cfg.RequestType),
		Surface:      turn.Surface,
		Stream:       r.cfg.Stream,
		Tools:        r.tools,
	}
	if continuation == "" {
		req.Prompt = turn.Directive
	} else {
		req.Prompt = RenderContext(r.store.Snapshot(key))
		req.PreviousResponseID = continuation
	}

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return Outcome{}, &ModelCallError{Provider: r.client.Name(), Err: err}
	}
	if resp == nil || (strings.TrimSpace(resp.Content) == "" && len(resp.ToolCalls) == 0 && !llm.IsMalformed(resp.FinishReason)) {
		return Outcome{}, &ModelCallError{Provider: r.client.Name(), Err: ErrEmptyResponse}
	}
	out := Outcome{
		FinishReason: resp.FinishReason,
		ResponseID:   resp.ResponseID,
		Usage:        resp.Usage,
	}

	if len(resp.ToolCalls) > 0 {
		tc := resp.ToolCalls[0]
		out.Calls = []domain.PendingToolCall{{Name: tc.Name, Arguments: tc.Arguments}}
		if len(resp.ToolCalls) > 1 {
			r.log.Debug().Int("ignored", len(resp.ToolCalls)-1).Msg("extra native tool calls dropped")
		}
	} else {
		out.Calls = ParseToolCalls(resp.Content, r.log)
	}

	switch {
	case llm.IsMalformed(resp.FinishReason):
		out.Kind = OutcomeMalformed
	case len(out.Calls) > 0:
		out.Kind = OutcomeToolCalls
	default:
		out.Kind = OutcomeText
	}

	if len(out.Calls) == 0 && strings.TrimSpace(resp.Content) != "" {
		out.Text = resp.Content
	}

	r.log.Debug().
		Str("session", key).
		Str("outcome", out.Kind.String()).
		Str("finish", out.FinishReason).
		Int("calls", len(out.Calls)).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Msg("reasoning step complete")
	return out, nil
}

// Commit saves an accepted outcome: its continuation id and, for a prose
// answer, the text. Outcomes from abandoned attempts are never committed.
func (r *Reasoner) Commit(key string, out Outcome) {
	if out.Kind == OutcomeMalformed {
		return
	}
	if out.ResponseID != "" {
		r.store.SetContinuation(key, out.ResponseID)
	}
	if out.Text != "" {
		r.store.Append(key, domain.NewAssistantText(out.Text))
	}
}

// jsonBlockRe matches fenced ```json blocks, non-greedy across lines.
var jsonBlockRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ParseToolCalls extracts tool calls from fenced json blocks in text.
// Blocks that do not decode to an object with both "tool" and "arguments"
// are logged and skipped.
func ParseToolCalls(text string, log *logging.Logger) []domain.PendingToolCall {
	var calls []domain.PendingToolCall
	for _, m := range jsonBlockRe.FindAllStringSubmatch(text, -1) {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(m[1]), &fields); err != nil {
			log.Warn().Err(err).Msg("skipping unparseable json block")
			continue
		}
		rawTool, hasTool := fields["tool"]
		args, hasArgs := fields["arguments"]
		if !hasTool || !hasArgs {
			log.Debug().Bool("tool", hasTool).Bool("arguments", hasArgs).Msg("skipping json block without tool call keys")
			continue
		}
		var name string
		if err := json.Unmarshal(rawTool, &name); err != nil {
			log.Warn().Err(err).Msg("skipping json block with non-string tool")
			continue
		}
		calls = append(calls, domain.PendingToolCall{Name: name, Arguments: args})
	}
	return calls
}
