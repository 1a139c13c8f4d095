package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Error kinds surfaced by Chat, mapped by callers to the error taxonomy's
// HTTP statuses (UpstreamAuth=401, UpstreamLLM=502).
var (
	ErrUpstreamAuth = errors.New("upstream auth failure")
	ErrUpstreamLLM  = errors.New("upstream llm failure")
)

const (
	networkRetryWait = 350 * time.Millisecond
	statusRetryWait  = 350 * time.Millisecond
	jsonRetryWait    = 200 * time.Millisecond
	maxRetryAfter    = 10 * time.Second
)

// ChatRequest is the contract input for a single chat-completion call.
type ChatRequest struct {
	Model       string
	Messages    []openai.ChatCompletionMessage
	TimeoutMs   int
	Temperature float32
	MaxTokens   int
}

// Client calls an OpenAI-compatible chat completions endpoint directly over
// HTTP (rather than through go-openai's client) so the retry policy can
// honor a server-supplied Retry-After header, which go-openai's client does
// not expose.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	UserAgent  string
}

// Chat performs a chat completion with retry: up to two attempts for
// network/transient-status failures, a separate single retry for a
// malformed response body, and a non-retryable auth failure on 401/403.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	payload, err := json.Marshal(openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", ErrUpstreamLLM, err)
	}

	jsonRetried := false
	const maxAttempts = 2
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, status, header, err := c.send(ctx, req.TimeoutMs, payload)
		if err != nil {
			if isRetryableNetworkError(err) && attempt < maxAttempts {
				sleepCtx(ctx, networkRetryWait)
				continue
			}
			return "", fmt.Errorf("%w: %v", ErrUpstreamLLM, err)
		}

		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return "", ErrUpstreamAuth
		}
		if isRetryableStatus(status) {
			if attempt < maxAttempts {
				sleepCtx(ctx, retryAfterWait(header))
				continue
			}
			return "", fmt.Errorf("%w: status %d", ErrUpstreamLLM, status)
		}
		if status < 200 || status > 299 {
			return "", fmt.Errorf("%w: status %d", ErrUpstreamLLM, status)
		}

		content, perr := parseContent(body)
		if perr != nil {
			if !jsonRetried {
				jsonRetried = true
				sleepCtx(ctx, jsonRetryWait)
				attempt-- // the malformed-body retry does not consume a network attempt
				continue
			}
			return "", fmt.Errorf("%w: %v", ErrUpstreamLLM, perr)
		}
		return content, nil
	}
	return "", fmt.Errorf("%w: retries exhausted", ErrUpstreamLLM)
}

func (c *Client) send(ctx context.Context, timeoutMs int, payload []byte) ([]byte, int, http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, err
	}
	return body, resp.StatusCode, resp.Header, nil
}

func parseContent(body []byte) (string, error) {
	var parsed openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("empty message content")
	}
	return content, nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func retryAfterWait(header http.Header) time.Duration {
	if header == nil {
		return statusRetryWait
	}
	raw := header.Get("Retry-After")
	if raw == "" {
		return statusRetryWait
	}
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return statusRetryWait
	}
	wait := time.Duration(secs) * time.Second
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}
	return wait
}

func isRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []error{syscall.ETIMEDOUT, syscall.ECONNRESET, syscall.EAGAIN, syscall.ECONNREFUSED} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
