package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"suporte-lojinha/internal/entities"
	"suporte-lojinha/internal/interfaces"
)

// HTTPResolver calls the intent-resolution sidecar. The sidecar owns the
// model prompt and the function-calling contract; this client only ships the
// transcript over and maps the reply onto typed actions.
type HTTPResolver struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPResolver(baseURL, apiKey string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type resolveRequest struct {
	Transcript []interfaces.TranscriptTurn `json:"transcript"`
	Message    string                      `json:"message"`
}

type resolveReply struct {
	Text          string                     `json:"text"`
	FunctionCalls []entities.RawFunctionCall `json:"functionCalls"`
	Error         string                     `json:"error,omitempty"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, transcript []interfaces.TranscriptTurn, turn string) (*entities.ResolverResponse, error) {
	payload, err := json.Marshal(resolveRequest{Transcript: transcript, Message: turn})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/resolve", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolver request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("resolver read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolver returned status %d: %s", resp.StatusCode, string(body))
	}

	var reply resolveReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("resolver decode: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("resolver error: %s", reply.Error)
	}

	out := &entities.ResolverResponse{Text: reply.Text}
	for _, call := range reply.FunctionCalls {
		out.Actions = append(out.Actions, call.Decode())
	}
	return out, nil
}
