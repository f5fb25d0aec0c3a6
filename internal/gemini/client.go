package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Supported embedding output dimensionalities.
var validDimensions = map[int]bool{768: true, 1536: true, 3072: true}

// ValidDimension reports whether the provider supports the given embedding
// output dimensionality.
func ValidDimension(d int) bool {
	return validDimensions[d]
}

// Client communicates with the Gemini generative-language API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	dimensions int
	httpClient *http.Client
}

// New creates a Client. embedModel and dimensions configure the embedding
// endpoint; chat models are chosen per request.
func New(baseURL, apiKey, embedModel string, dimensions int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		embedModel: embedModel,
		dimensions: dimensions,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// generateRequest is the JSON body for POST /v1beta/models/{model}:generateContent.
type generateRequest struct {
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
	Contents          []Content `json:"contents"`
	Tools             []Tool    `json:"tools,omitempty"`
}

// generateResponse mirrors the JSON returned by generateContent.
type generateResponse struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
}

// GenerateContent sends the conversation history to the given model and
// returns the first candidate's content.
func (c *Client) GenerateContent(ctx context.Context, model, system string, tools []Tool, contents []Content) (Content, error) {
	gr := generateRequest{
		Contents: contents,
		Tools:    tools,
	}
	if system != "" {
		gr.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}

	var result generateResponse
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	if err := c.post(ctx, url, gr, &result); err != nil {
		return Content{}, fmt.Errorf("generate content: %w", err)
	}

	if len(result.Candidates) == 0 {
		return Content{}, fmt.Errorf("generate content: no candidates returned")
	}
	return result.Candidates[0].Content, nil
}

// embedRequest is the JSON body for POST /v1beta/models/{model}:embedContent.
type embedRequest struct {
	Content              Content `json:"content"`
	TaskType             string  `json:"taskType"`
	OutputDimensionality int     `json:"outputDimensionality,omitempty"`
}

// embedResponse is the JSON returned by embedContent.
type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for the given text using the configured
// embedding model and output dimensionality.
func (c *Client) Embed(ctx context.Context, text, taskType string) ([]float32, error) {
	er := embedRequest{
		Content:              Content{Parts: []Part{{Text: text}}},
		TaskType:             taskType,
		OutputDimensionality: c.dimensions,
	}

	var result embedResponse
	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", c.baseURL, c.embedModel)
	if err := c.post(ctx, url, er, &result); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embed: empty embedding returned")
	}
	return result.Embedding.Values, nil
}

// EmbedDocument embeds text in document-indexing mode.
func (c *Client) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.Embed(ctx, text, TaskRetrievalDocument)
}

// EmbedQuery embeds text in query mode.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.Embed(ctx, text, TaskRetrievalQuery)
}

func (c *Client) post(ctx context.Context, url string, reqBody, respBody any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
