package correlate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/httputil"
)

// HTTPSemanticProvider scores entity pairs against an external semantic
// correlation service. Engine wraps every call in a timeout and falls back
// to the lexical scorer on any error, so this client only reports failures,
// it never retries.
type HTTPSemanticProvider struct {
	client httputil.HTTPClient
	url    string
}

// NewHTTPSemanticProvider creates a provider posting to the given endpoint.
// A nil client uses http.DefaultClient.
func NewHTTPSemanticProvider(client httputil.HTTPClient, url string) *HTTPSemanticProvider {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &HTTPSemanticProvider{client: client, url: url}
}

type semanticRequest struct {
	EntityA semanticEntity `json:"entityA"`
	EntityB semanticEntity `json:"entityB"`
}

type semanticEntity struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	Description string `json:"description"`
}

type semanticResponse struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Score implements SemanticProvider.
func (p *HTTPSemanticProvider) Score(ctx context.Context, a, b Entity) (SubScore, error) {
	payload, err := json.Marshal(semanticRequest{
		EntityA: semanticEntity{Type: a.Type(), Subtype: a.Subtype(), Description: a.Description()},
		EntityB: semanticEntity{Type: b.Type(), Subtype: b.Subtype(), Description: b.Description()},
	})
	if err != nil {
		return SubScore{}, fmt.Errorf("encoding semantic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return SubScore{}, fmt.Errorf("building semantic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return SubScore{}, fmt.Errorf("semantic provider call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SubScore{}, fmt.Errorf("semantic provider returned status %d", resp.StatusCode)
	}

	var out semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SubScore{}, fmt.Errorf("decoding semantic response: %w", err)
	}
	return SubScore{Score: clamp01(out.Score), Reason: out.Reason}, nil
}
