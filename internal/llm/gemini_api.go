package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GeminiAPIClient is a direct HTTP client for the Google Gemini API.
type GeminiAPIClient struct {
	apiKey      string
	model       string
	client      *http.Client
	transcripts *transcriptCache[geminiContent]
}

// NewGeminiAPIClient creates a new Gemini API client.
func NewGeminiAPIClient(apiKey, model string) *GeminiAPIClient {
	return &GeminiAPIClient{
		apiKey:      apiKey,
		model:       model,
		client:      &http.Client{Timeout: 10 * time.Minute},
		transcripts: newTranscriptCache[geminiContent](),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (g *GeminiAPIClient) WithHTTPClient(c *http.Client) *GeminiAPIClient {
	g.client = c
	return g
}

// Name returns the provider name.
func (g *GeminiAPIClient) Name() string {
	return "gemini"
}

// Complete sends a completion request. With req.Stream set it reads the SSE
// stream and aggregates the chunks.
func (g *GeminiAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.model
	}
	endpoint := g.endpoint(req, model)

	contents := g.transcripts.Get(req.PreviousResponseID)
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}})

	body := geminiRequest{Contents: contents}
	if req.Instructions != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.Instructions}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDecl, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = geminiFunctionDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parseJSONSchema(t.InputSchema),
			}
		}
		body.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	resp, err := postJSON(ctx, g.client, g.Name(), endpoint, map[string]string{"x-goog-api-key": g.apiKey}, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var agg geminiAggregate
	if req.Stream {
		scanner := newServerSentEventScanner(resp.Body)
		for scanner.Scan() {
			var chunk geminiAPIResponse
			if err := json.Unmarshal([]byte(scanner.Text()), &chunk); err != nil {
				continue
			}
			agg.add(&chunk)
		}
		if err := scanner.Err(); err != nil {
			return nil, &ProviderError{Provider: g.Name(), Message: "stream read failed: " + err.Error()}
		}
	} else {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		var result geminiAPIResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, &ProviderError{Provider: g.Name(), Message: "failed to parse response: " + err.Error()}
		}
		agg.add(&result)
	}

	out := agg.completion(model, time.Since(start))
	g.transcripts.Put(out.ResponseID, append(contents, geminiContent{Role: "model", Parts: agg.parts}))
	return out, nil
}

func (g *GeminiAPIClient) endpoint(req CompletionRequest, model string) string {
	endpoint := req.Endpoint
	if endpoint == "" {
		rt := req.RequestType
		if rt == "" {
			rt = DefaultRequestType(g.Name())
		}
		endpoint = defaultEndpoints[g.Name()][rt]
		if endpoint == "" {
			endpoint = defaultEndpoints[g.Name()]["generateContent"]
		}
	}
	if req.Stream {
		endpoint = geminiStreamEndpoint(endpoint)
	}
	return expandModel(endpoint, model)
}

// geminiStreamEndpoint switches a generateContent URL to its SSE variant.
func geminiStreamEndpoint(endpoint string) string {
	endpoint = strings.Replace(endpoint, ":generateContent", ":streamGenerateContent", 1)
	if !strings.Contains(endpoint, "alt=sse") {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + "alt=sse"
	}
	return endpoint
}

// geminiAggregate folds one or more response chunks together.
type geminiAggregate struct {
	text       strings.Builder
	parts      []geminiPart
	toolCalls  []ToolCall
	finish     string
	responseID string
	usage      Usage
}

func (a *geminiAggregate) add(resp *geminiAPIResponse) {
	if resp.ResponseID != "" {
		a.responseID = resp.ResponseID
	}
	if resp.UsageMetadata.PromptTokenCount > 0 {
		a.usage.InputTokens = resp.UsageMetadata.PromptTokenCount
	}
	if resp.UsageMetadata.CandidatesTokenCount > 0 {
		a.usage.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	if len(resp.Candidates) == 0 {
		return
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason != "" {
		a.finish = candidate.FinishReason
	}
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			a.text.WriteString(part.Text)
			a.parts = append(a.parts, geminiPart{Text: part.Text})
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil || part.FunctionCall.Args == nil {
				args = json.RawMessage(`{}`)
			}
			a.toolCalls = append(a.toolCalls, ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
			a.parts = append(a.parts, geminiPart{FunctionCall: part.FunctionCall})
		}
	}
}

func (a *geminiAggregate) completion(model string, duration time.Duration) *CompletionResponse {
	id := a.responseID
	if id == "" {
		id = uuid.New().String()
	}
	return &CompletionResponse{
		Content:      a.text.String(),
		ToolCalls:    a.toolCalls,
		FinishReason: a.finish,
		ResponseID:   id,
		Usage:        a.usage,
		Model:        model,
		Duration:     duration,
	}
}

// API structures

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiAPIResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	ResponseID    string            `json:"responseId"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}
