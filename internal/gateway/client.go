package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nanobanana/supermarket/internal/models"
)

// ErrNoContent is returned when the model answers with neither an image nor
// any caption text.
var ErrNoContent = errors.New("the model did not return any content")

// ImagePayload is one base64-encoded reference image.
type ImagePayload struct {
	Base64   string
	MimeType string
}

// EditRequest describes a single edit call: a primary image, the instruction
// prompt, and optionally a mask and a secondary reference image.
type EditRequest struct {
	ImageBase64 string
	MimeType    string
	Prompt      string
	MaskBase64  string
	Secondary   *ImagePayload
}

// Client speaks the chat-completions dialect of the generation endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewClient(opts Options, log *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type contentBlock struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
}

// Edit performs one generation attempt. There is no retry; one call equals
// one attempt.
func (c *Client) Edit(ctx context.Context, req EditRequest) (*models.GeneratedContent, error) {
	prompt := req.Prompt
	if req.MaskBase64 != "" {
		// The mask travels as an auxiliary image; the instruction is
		// rewritten so the model confines the edit to it.
		prompt = fmt.Sprintf("Apply the following instruction only to the masked area of the image: %q. Preserve the unmasked area.", req.Prompt)
	}

	content := []contentBlock{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &imageRef{URL: fmt.Sprintf("data:%s;base64,%s", req.MimeType, req.ImageBase64)}},
	}
	if req.MaskBase64 != "" {
		content = append(content, contentBlock{
			Type:     "image_url",
			ImageURL: &imageRef{URL: "data:image/png;base64," + req.MaskBase64},
		})
	}
	if req.Secondary != nil {
		content = append(content, contentBlock{
			Type:     "image_url",
			ImageURL: &imageRef{URL: fmt.Sprintf("data:%s;base64,%s", req.Secondary.MimeType, req.Secondary.Base64)},
		})
	}

	payload := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: content}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post generation: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("generation request failed", "status", resp.StatusCode, "body", truncateBody(rawBody))
		}
		return nil, errors.New(upstreamErrorMessage(resp.StatusCode, rawBody))
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawBody, &chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if len(chatResp.Choices) == 0 {
		return nil, ErrNoContent
	}

	parsed := ParseContent(chatResp.Choices[0].Message.Content)
	if parsed.ImageURL == "" && strings.TrimSpace(parsed.Text) == "" {
		return nil, ErrNoContent
	}

	return &models.GeneratedContent{
		ImageURL: parsed.ImageURL,
		Text:     parsed.Text,
	}, nil
}

// upstreamErrorMessage extracts {error:{message}} when the body is a
// structured error, falling back to the raw response text.
func upstreamErrorMessage(status int, body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return truncateBody(body)
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
