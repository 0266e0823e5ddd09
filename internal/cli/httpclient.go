package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	json "github.com/json-iterator/go"
)

// ServerError is the error body returned by the sync server
type ServerError struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

// HTTPError represents an error response from the server with a status code
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// HTTPClient makes requests to the sync server
type HTTPClient struct {
	config     *Config
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client using the provided configuration
func NewHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// RequestOptions contains options for making HTTP requests
type RequestOptions struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     map[string]string
	Body        []byte
}

// Response is a successful server response.
type Response struct {
	StatusCode int
	Body       []byte
	Location   string
}

// DoRequest makes an HTTP request with the given options. Status codes of
// 400 and above are returned as *HTTPError.
func (c *HTTPClient) DoRequest(opts RequestOptions) (*Response, error) {
	u, err := url.Parse(c.config.GetServerURL())
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequest(opts.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	rspBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode >= 400 {
		var serverErr ServerError
		if err := json.Unmarshal(rspBody, &serverErr); err == nil && serverErr.Error != "" {
			return nil, &HTTPError{
				StatusCode: resp.StatusCode,
				Message:    serverErr.Error,
			}
		}
		msg := strings.TrimSpace(string(rspBody))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       rspBody,
		Location:   resp.Header.Get("Location"),
	}, nil
}

// GetJSON fetches p and decodes the body into v.
func (c *HTTPClient) GetJSON(p string, query map[string]string, v any) error {
	rsp, err := c.DoRequest(RequestOptions{
		Method:      http.MethodGet,
		Path:        p,
		QueryParams: query,
	})
	if err != nil {
		return err
	}
	return decode(rsp.Body, v)
}

// PostJSON posts body to p and decodes the response into v.
func (c *HTTPClient) PostJSON(p string, query map[string]string, body []byte, v any) (*Response, error) {
	rsp, err := c.DoRequest(RequestOptions{
		Method:      http.MethodPost,
		Path:        p,
		QueryParams: query,
		Body:        body,
	})
	if err != nil {
		return nil, err
	}
	if v != nil && len(rsp.Body) > 0 {
		if err := decode(rsp.Body, v); err != nil {
			return nil, err
		}
	}
	return rsp, nil
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	return nil
}
