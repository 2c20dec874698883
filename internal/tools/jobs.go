package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrJobNotFound reports a task id the jobs backend has no record of.
var ErrJobNotFound = errors.New("job record not found")

// JobRecord is the decoded state of one job held by the generation backend.
type JobRecord struct {
	State      string
	FailCode   string
	FailMsg    string
	ResultURLs []string
}

// JobsAPI is the narrow boundary to the sync-create generation backend: one
// call submits a job and returns its identifier, one call queries a record.
type JobsAPI interface {
	CreateTask(ctx context.Context, model string, input map[string]any) (string, error)
	RecordInfo(ctx context.Context, taskID string) (*JobRecord, error)
}

// JobsClient is the HTTP implementation of JobsAPI.
type JobsClient struct {
	BaseURL     string
	APIKey      string
	CallbackURL string

	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewJobsClient(baseURL, apiKey string) *JobsClient {
	return &JobsClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
	}
}

func (c *JobsClient) CreateTask(ctx context.Context, model string, input map[string]any) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	payload := map[string]any{
		"model":       model,
		"callBackUrl": c.CallbackURL,
		"input":       input,
	}
	var resp struct {
		Data struct {
			TaskID string `json:"taskId"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, c.BaseURL+"/jobs/createTask", payload, &resp); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	if resp.Data.TaskID == "" {
		return "", fmt.Errorf("create task: backend returned no task id")
	}
	return resp.Data.TaskID, nil
}

func (c *JobsClient) RecordInfo(ctx context.Context, taskID string) (*JobRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/jobs/recordInfo?taskId="+taskID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("record info: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("record info: status %d", res.StatusCode)
	}

	var body struct {
		Data *struct {
			State      string `json:"state"`
			FailCode   string `json:"failCode"`
			FailMsg    string `json:"failMsg"`
			ResultJSON string `json:"resultJson"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("record info: decode: %w", err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("record info: task %s: %w", taskID, ErrJobNotFound)
	}

	rec := &JobRecord{State: body.Data.State, FailCode: body.Data.FailCode, FailMsg: body.Data.FailMsg}
	if body.Data.ResultJSON != "" {
		var result struct {
			ResultURLs []string `json:"resultUrls"`
		}
		// An unparseable result document is equivalent to no URLs.
		_ = json.Unmarshal([]byte(body.Data.ResultJSON), &result)
		rec.ResultURLs = result.ResultURLs
	}
	return rec, nil
}

func (c *JobsClient) postJSON(ctx context.Context, url string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// ProxyRequest carries one image-edit request through the proxy backend.
type ProxyRequest struct {
	Prompt      string
	ImageURLs   []string
	AspectRatio string
	Size        string
}

// ProxyAPI is the boundary to the slow image-edit proxy: a generate call that
// eventually yields an image URL, and an asset-transfer call that re-hosts it.
type ProxyAPI interface {
	Generate(ctx context.Context, req ProxyRequest) (string, error)
	Transfer(ctx context.Context, url string) (string, error)
}

// ProxyClient is the HTTP implementation of ProxyAPI.
type ProxyClient struct {
	GenerateURL string
	TransferURL string
	APIKey      string

	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewProxyClient(generateURL, transferURL, apiKey string) *ProxyClient {
	return &ProxyClient{
		GenerateURL: generateURL,
		TransferURL: transferURL,
		APIKey:      apiKey,
		// The generate call routinely runs for minutes.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
	}
}

func (c *ProxyClient) Generate(ctx context.Context, preq ProxyRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	payload := map[string]any{
		"prompt":       preq.Prompt,
		"image_urls":   preq.ImageURLs,
		"aspect_ratio": preq.AspectRatio,
		"size":         preq.Size,
	}
	var resp struct {
		ImageURLs []string `json:"image_urls"`
	}
	if err := c.post(ctx, c.GenerateURL, payload, &resp, true); err != nil {
		return "", fmt.Errorf("proxy generate: %w", err)
	}
	if len(resp.ImageURLs) == 0 {
		return "", fmt.Errorf("proxy generate: no image in response")
	}
	return resp.ImageURLs[0], nil
}

// Transfer re-hosts an image and returns the durable URL. On any failure the
// original URL is still usable, so errors carry it back to the caller.
func (c *ProxyClient) Transfer(ctx context.Context, url string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, c.TransferURL, map[string]any{"url": url}, &resp, false); err != nil {
		return "", fmt.Errorf("proxy transfer: %w", err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("proxy transfer: empty url in response")
	}
	return resp.URL, nil
}

func (c *ProxyClient) post(ctx context.Context, url string, body, out any, auth bool) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
