// Package classifier provides a client for the in-house drill-map AI
// classification service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the classification operations.
type Client interface {
	// Classify submits an image for classification. Transport errors,
	// non-2xx statuses and application-level error envelopes all yield a
	// soft-failure Result (nil code/model/distance, Error set) with a nil
	// Go error; the record owning the image is persisted regardless.
	Classify(ctx context.Context, imgSrc, productName string) Result
}

// Result is the outcome of one classification attempt.
type Result struct {
	Code     *string
	Model    *string
	Distance *float64
	Error    string
}

// Failed reports whether the attempt yielded no classification.
func (r Result) Failed() bool { return r.Error != "" }

type classifyRequest struct {
	ImgSrc      string `json:"img_src"`
	ProductName string `json:"product_name"`
}

type classifyResponse struct {
	Code  string       `json:"code"`
	Error string       `json:"error"`
	Data  classifyData `json:"data"`
}

type classifyData struct {
	ClassificationCode  string   `json:"classification_code"`
	ClassificationModel string   `json:"classification_model"`
	Distance            *float64 `json:"distance"`
}

// Option configures the classifier client.
type Option func(*httpClient)

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRateLimit caps outgoing classification calls per second. Zero or
// negative disables limiting.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a classifier client against baseURL. The service lives
// inside the plant network: no ambient proxy is consulted and TLS
// certificates are verified normally.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy:               nil,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Classify(ctx context.Context, imgSrc, productName string) Result {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return softFail(eris.Wrap(err, "classifier: rate limit wait"))
		}
	}

	payload, err := json.Marshal(classifyRequest{ImgSrc: imgSrc, ProductName: productName})
	if err != nil {
		return softFail(eris.Wrap(err, "classifier: marshal request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/drill_map/classify", bytes.NewReader(payload))
	if err != nil {
		return softFail(eris.Wrap(err, "classifier: build request"))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return softFail(eris.Wrap(err, "classifier: call service"))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return softFail(eris.Wrap(err, "classifier: read response"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return softFail(eris.New(fmt.Sprintf("classifier: status %d: %s", resp.StatusCode, truncate(body, 200))))
	}

	var parsed classifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return softFail(eris.Wrap(err, "classifier: decode response"))
	}

	if parsed.Code != "0" {
		msg := parsed.Error
		if msg == "" {
			msg = fmt.Sprintf("service error code %q", parsed.Code)
		}
		return Result{Error: msg}
	}

	return Result{
		Code:     &parsed.Data.ClassificationCode,
		Model:    &parsed.Data.ClassificationModel,
		Distance: parsed.Data.Distance,
	}
}

func softFail(err error) Result {
	return Result{Error: err.Error()}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
