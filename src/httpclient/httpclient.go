// Package httpclient implements the blocking JSON/binary request contract
// shared by the manifest, metadata, assets, auth, and modded-installer
// components.
package httpclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sentinel errors distinguishing scheme rejection, transport failure, and a
// body that doesn't decode as JSON.
var (
	ErrInvalidScheme = errors.New("httpclient: url scheme must be http or https")
	ErrSocket        = errors.New("httpclient: socket error")
	ErrNotJSON       = errors.New("httpclient: response body is not valid json")
)

// Client performs blocking JSON and binary HTTP requests. The zero value is
// not usable; use New.
type Client struct {
	http *http.Client
	log  *logrus.Entry
}

// New builds a Client. timeout, if non-zero, bounds each request as a whole,
// from connecting through reading the full response body; there is no
// separate per-read timeout.
func New(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
		log:  logrus.WithField("component", "httpclient"),
	}
}

func checkScheme(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(ErrInvalidScheme, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Wrapf(ErrInvalidScheme, "%q", u.Scheme)
	}
	return nil
}

// JSONRequest issues a JSON request and decodes the response body. The HTTP
// status is returned as-is to the caller; no automatic error is raised on
// 4xx/5xx. If ignoreDecodeError is false and the body fails to decode as
// JSON, ErrNotJSON is returned.
func (c *Client) JSONRequest(method, rawURL string, body any, headers map[string]string, ignoreDecodeError bool) (int, map[string]any, error) {
	if err := checkScheme(rawURL); err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, errors.Wrap(err, "httpclient: encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, rawURL, reader)
	if err != nil {
		return 0, nil, errors.Wrap(err, "httpclient: build request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Close = true
	req.Header.Set("Connection", "close")

	c.log.WithFields(logrus.Fields{"method": method, "url": rawURL}).Debug("json_request")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(ErrSocket, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(ErrSocket, err.Error())
	}

	if len(raw) == 0 {
		return resp.StatusCode, map[string]any{}, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if ignoreDecodeError {
			return resp.StatusCode, map[string]any{}, nil
		}
		return resp.StatusCode, nil, errors.Wrapf(ErrNotJSON, "status %d", resp.StatusCode)
	}
	return resp.StatusCode, decoded, nil
}

// BinaryRequest issues a GET request and returns the raw status and body
// stream. The caller owns closing the returned ReadCloser.
func (c *Client) BinaryRequest(rawURL string) (int, io.ReadCloser, error) {
	if err := checkScheme(rawURL); err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, errors.Wrap(err, "httpclient: build request")
	}

	c.log.WithField("url", rawURL).Debug("binary_request")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(ErrSocket, err.Error())
	}
	return resp.StatusCode, resp.Body, nil
}
