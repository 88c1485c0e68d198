// Package specsvc provides a client for the plant's SOAP spec-value proxy,
// used to look up the annular-ring measurement for a lot.
package specsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the spec-value operations.
type Client interface {
	// LookupARValue fetches the annular-ring value for a lot. Callers treat
	// any error as "no AR value available" and fall back to 0.
	LookupARValue(ctx context.Context, lotNumber string) (float64, error)
}

// Option configures the specsvc client.
type Option func(*httpClient)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	url  string
	http *http.Client
}

// NewClient creates a spec-value client against the proxy endpoint URL.
func NewClient(url string, opts ...Option) Client {
	c := &httpClient{
		url: url,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const specMethod = "GetSpecValue"

// lookupParams is the JSON payload tunnelled inside the SOAP envelope.
type lookupParams struct {
	ScheduleID        string `json:"ScheduleId"`
	StepID            string `json:"StepId"`
	SPECType          string `json:"SPECType"`
	InComChColumnName string `json:"InComChColumnName"`
}

// lotParams picks the process step and column for a lot. Lots longer than
// ten characters are inner-layer schedules; the rest are outer-layer.
func lotParams(lotNumber string) lookupParams {
	if len(lotNumber) > 10 {
		return lookupParams{
			ScheduleID:        lotNumber,
			StepID:            "7276",
			SPECType:          "1",
			InComChColumnName: "內層Annual Ring",
		}
	}
	return lookupParams{
		ScheduleID:        lotNumber,
		StepID:            "9241",
		SPECType:          "1",
		InComChColumnName: "外層Annual Ring",
	}
}

func (c *httpClient) LookupARValue(ctx context.Context, lotNumber string) (float64, error) {
	params, err := json.Marshal(lotParams(lotNumber))
	if err != nil {
		return 0, eris.Wrap(err, "specsvc: marshal params")
	}

	envelope := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <%s xmlns="http://tempuri.org/">
      <EAP_Json>%s</EAP_Json>
    </%s>
  </soap:Body>
</soap:Envelope>`, specMethod, string(params), specMethod)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(envelope))
	if err != nil {
		return 0, eris.Wrap(err, "specsvc: build request")
	}
	req.Header.Set("Content-Type", "text/xml;charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "specsvc: call proxy")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, eris.New(fmt.Sprintf("specsvc: status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, eris.Wrap(err, "specsvc: read response")
	}

	return parseSpecValue(body)
}

// soapEnvelope matches the namespaced result element regardless of nesting.
type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Result  string   `xml:"Body>GetSpecValueResponse>GetSpecValueResult"`
}

// parseSpecValue extracts the numeric spec value from a SOAP response. The
// result element carries either a bare number or a JSON scalar.
func parseSpecValue(body []byte) (float64, error) {
	var env soapEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return 0, eris.Wrap(err, "specsvc: parse envelope")
	}
	if env.Result == "" {
		return 0, eris.New("specsvc: empty result element")
	}

	// Plain numeric result.
	if v, err := strconv.ParseFloat(env.Result, 64); err == nil {
		return v, nil
	}

	// JSON-wrapped result.
	var v float64
	if err := json.Unmarshal([]byte(env.Result), &v); err != nil {
		return 0, eris.Wrapf(err, "specsvc: parse result %q", env.Result)
	}
	return v, nil
}
