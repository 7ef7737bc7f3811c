// Package imagegen calls a DashScope-compatible text-to-image service.
// Image synthesis is asynchronous: a task is submitted and then polled until
// it reaches a terminal state.
package imagegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the public DashScope API root
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	// DefaultModel is the text-to-image model
	DefaultModel = "wanx2.1-t2i-turbo"
	// DefaultSize is the rendered image size
	DefaultSize = "1024*1024"
	// DefaultPollInterval is the first delay between task polls
	DefaultPollInterval = 2 * time.Second
	// DefaultTimeout bounds the whole submit-and-poll cycle
	DefaultTimeout = 5 * time.Minute

	synthesisPath = "/services/aigc/text2image/image-synthesis"
	tasksPath     = "/tasks/"
)

// Task states reported by the service
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCanceled  = "CANCELED"
	StatusUnknown   = "UNKNOWN"
	// StatusTimeout is reported locally when polling gives up
	StatusTimeout = "TIMEOUT"
)

var errTaskPending = errors.New("task still pending")

// Options configures a Client. Zero values use the defaults above.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	Size         string
	PollInterval time.Duration
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client generates images from text prompts
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	size         string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
}

// New creates a Client
func New(opts Options) *Client {
	c := &Client{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		model:        opts.Model,
		size:         opts.Size,
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
		httpClient:   opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.size == "" {
		c.size = DefaultSize
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

type synthesisRequest struct {
	Model      string          `json:"model"`
	Input      synthesisInput  `json:"input"`
	Parameters synthesisParams `json:"parameters"`
}

type synthesisInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type synthesisParams struct {
	Size string `json:"size"`
	N    int    `json:"n"`
}

type taskResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Code       string `json:"code"`
		Message    string `json:"message"`
		Results    []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"output"`
}

// Generate submits a synthesis task and waits for its image URL
func (c *Client) Generate(ctx context.Context, prompt, negativePrompt string) (string, error) {
	taskID, err := c.submit(ctx, prompt, negativePrompt)
	if err != nil {
		return "", err
	}

	log.Debug().Str("task_id", taskID).Msg("image task submitted")

	url, err := c.waitForTask(ctx, taskID)
	if err != nil {
		return "", err
	}

	log.Debug().Str("task_id", taskID).Str("url", url).Msg("image task succeeded")
	return url, nil
}

func (c *Client) submit(ctx context.Context, prompt, negativePrompt string) (string, error) {
	body, err := sonic.Marshal(synthesisRequest{
		Model:      c.model,
		Input:      synthesisInput{Prompt: prompt, NegativePrompt: negativePrompt},
		Parameters: synthesisParams{Size: c.size, N: 1},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+synthesisPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DashScope-Async", "enable")
	c.authorize(req)

	resp, status, err := c.do(req)
	if err != nil {
		return "", &TaskError{Status: "SUBMIT", Message: "request failed", Cause: err}
	}
	if status != http.StatusOK {
		return "", &TaskError{Status: "SUBMIT", HTTPStatus: status, Code: resp.Code, Message: resp.Message}
	}
	if resp.Output.TaskID == "" {
		return "", &TaskError{Status: "SUBMIT", Message: "response has no task id"}
	}
	return resp.Output.TaskID, nil
}

// waitForTask polls the task with exponential backoff until it reaches a terminal state
func (c *Client) waitForTask(ctx context.Context, taskID string) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 4 * c.pollInterval
	b.MaxElapsedTime = c.timeout

	url, err := backoff.RetryWithData(func() (string, error) {
		return c.poll(ctx, taskID)
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return url, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if errors.Is(err, errTaskPending) {
		return "", &TaskError{TaskID: taskID, Status: StatusTimeout, Message: fmt.Sprintf("no result after %s", c.timeout)}
	}
	return "", err
}

// poll checks the task once. Terminal failures are wrapped as permanent so the retry loop stops.
func (c *Client) poll(ctx context.Context, taskID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tasksPath+taskID, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create task request: %w", err))
	}
	c.authorize(req)

	resp, status, err := c.do(req)
	if err != nil {
		// Network errors are transient
		return "", err
	}
	if status >= 500 {
		return "", fmt.Errorf("task %s: server returned %d", taskID, status)
	}
	if status != http.StatusOK {
		return "", backoff.Permanent(&TaskError{TaskID: taskID, HTTPStatus: status, Code: resp.Code, Message: resp.Message})
	}

	switch resp.Output.TaskStatus {
	case StatusSucceeded:
		if len(resp.Output.Results) == 0 || resp.Output.Results[0].URL == "" {
			return "", backoff.Permanent(&TaskError{TaskID: taskID, Status: StatusSucceeded, Message: "task has no result url"})
		}
		return resp.Output.Results[0].URL, nil
	case StatusFailed, StatusCanceled, StatusUnknown:
		return "", backoff.Permanent(&TaskError{
			TaskID:  taskID,
			Status:  resp.Output.TaskStatus,
			Code:    resp.Output.Code,
			Message: resp.Output.Message,
		})
	default:
		return "", errTaskPending
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) do(req *http.Request) (*taskResponse, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	var out taskResponse
	if len(data) > 0 {
		if err := sonic.Unmarshal(data, &out); err != nil && resp.StatusCode == http.StatusOK {
			return nil, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return &out, resp.StatusCode, nil
}
