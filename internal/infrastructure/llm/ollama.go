package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"StockAgent/internal/config"
	"StockAgent/internal/ports"
)

// OllamaClient implements ports.ModelClient against an Ollama-compatible
// /api/chat endpoint.
type OllamaClient struct {
	host        string
	model       string
	temperature float64
	httpClient  *http.Client
}

var _ ports.ModelClient = (*OllamaClient)(nil)

// NewOllamaClient builds a client from configuration.
func NewOllamaClient(cfg config.OllamaConfig) *OllamaClient {
	return &OllamaClient{
		host:        strings.TrimSuffix(cfg.Host, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// Chat posts the prompt as a single user message and returns the raw
// reply text. No retry on failure; the caller skips the item this cycle.
func (c *OllamaClient) Chat(ctx context.Context, prompt string) (string, error) {
	if c.host == "" || c.model == "" {
		return "", fmt.Errorf("ollama client misconfigured")
	}

	request := map[string]any{
		"model":  c.model,
		"stream": false,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if c.temperature > 0 {
		request["options"] = map[string]any{"temperature": c.temperature}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	return decoded.Message.Content, nil
}
