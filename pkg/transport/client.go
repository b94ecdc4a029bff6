// Package transport delivers assembled envelopes to the EFILE intake
// endpoint and classifies the remote response. The Sender wraps the raw
// HTTP client with the resilience policy: bounded per-attempt timeout,
// exponential backoff with jitter, and the shared circuit breaker.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/beevik/etree"
)

// ClientConfig holds HTTP client settings for the EFILE endpoint.
type ClientConfig struct {
	Endpoint string
	// Timeout bounds each network attempt.
	Timeout         time.Duration
	MinTLSVersion   uint16
	IdleConnTimeout time.Duration
}

// DefaultClientConfig returns client settings used when none are configured.
func DefaultClientConfig(endpoint string) ClientConfig {
	return ClientConfig{
		Endpoint:        endpoint,
		Timeout:         15 * time.Second,
		MinTLSVersion:   tls.VersionTLS12,
		IdleConnTimeout: 90 * time.Second,
	}
}

// Response is the parsed intake response for a single round trip.
type Response struct {
	Accepted       bool
	ConfirmationID string
	ErrorCode      string
	Detail         string
}

// RejectionError is a terminal protocol-level rejection: the endpoint was
// reachable and explicitly refused the content. Never retried.
type RejectionError struct {
	Code   string
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("submission rejected by endpoint: code %s: %s", e.Code, e.Detail)
}

// TransmitError is a transient transport failure (timeout or connection
// error), retried under the backoff policy.
type TransmitError struct {
	Timeout bool
	Err     error
}

func (e *TransmitError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transmission timed out: %v", e.Err)
	}
	return fmt.Sprintf("transmission failed: %v", e.Err)
}

func (e *TransmitError) Unwrap() error { return e.Err }

// Client posts envelopes to a single EFILE endpoint.
type Client struct {
	http     *http.Client
	endpoint string
}

// NewClient creates a client for the configured endpoint.
func NewClient(cfg ClientConfig) *Client {
	minTLS := cfg.MinTLSVersion
	if minTLS == 0 {
		minTLS = tls.VersionTLS12
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultClientConfig(cfg.Endpoint).Timeout
	}
	tr := &http.Transport{
		TLSClientConfig:     &tls.Config{MinVersion: minTLS},
		IdleConnTimeout:     cfg.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}
	return &Client{
		http:     &http.Client{Transport: tr, Timeout: timeout},
		endpoint: cfg.Endpoint,
	}
}

// Endpoint returns the configured intake URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Post performs one round trip. It returns:
//   - (*Response, nil) when the endpoint accepted the submission;
//   - (nil, *RejectionError) on an explicit protocol rejection;
//   - (nil, *TransmitError) on timeout or transport failure.
func (c *Client) Post(ctx context.Context, envelopeXML []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(envelopeXML))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("User-Agent", "tax-prep-app-efile/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransmitError{Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return parseResponse(body)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		if _, perr := parseResponse(body); perr != nil {
			var rej *RejectionError
			if errors.As(perr, &rej) {
				return nil, rej
			}
		}
		return nil, &RejectionError{
			Code:   fmt.Sprintf("HTTP-%d", resp.StatusCode),
			Detail: maskIdentifiers(string(body)),
		}
	default:
		return nil, &TransmitError{
			Err: fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, maskIdentifiers(string(body))),
		}
	}
}

// classifyTransport sorts request errors into timeout vs connection failure.
// Both feed the breaker identically; the distinction is kept for the
// attempt audit.
func classifyTransport(err error) *TransmitError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransmitError{Timeout: true, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransmitError{Timeout: true, Err: err}
	}
	return &TransmitError{Err: err}
}

// parseResponse reads the intake response document.
//
//	<EfileResponse>
//	  <Status>accepted|rejected</Status>
//	  <ConfirmationNumber>...</ConfirmationNumber>   (on accept)
//	  <ErrorCode>...</ErrorCode><Detail>...</Detail> (on reject)
//	</EfileResponse>
func parseResponse(body []byte) (*Response, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, &TransmitError{Err: fmt.Errorf("malformed response: %w", err)}
	}
	root := doc.Root()
	if root == nil || root.Tag != "EfileResponse" {
		return nil, &TransmitError{Err: errors.New("response missing EfileResponse root")}
	}

	status := text(root, "Status")
	switch status {
	case "accepted":
		conf := text(root, "ConfirmationNumber")
		if conf == "" {
			return nil, &TransmitError{Err: errors.New("accepted response missing confirmation number")}
		}
		return &Response{Accepted: true, ConfirmationID: conf}, nil
	case "rejected":
		return nil, &RejectionError{
			Code:   text(root, "ErrorCode"),
			Detail: maskIdentifiers(text(root, "Detail")),
		}
	default:
		return nil, &TransmitError{Err: fmt.Errorf("unknown response status %q", status)}
	}
}

func text(root *etree.Element, tag string) string {
	if el := root.FindElement(tag); el != nil {
		return el.Text()
	}
	return ""
}
