package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charliek/logdog/internal/api"
	"github.com/charliek/logdog/internal/constants"
)

// Client is an HTTP client for the logdog API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	streamer   *http.Client
}

// NewClient creates a client, picking up the saved token if there is one
func NewClient(baseURL string) *Client {
	token, _ := loadToken() // a missing token is fine on loopback

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: constants.DefaultClientTimeout},
		streamer:   &http.Client{},
	}
}

// GetStatus gets the instance status
func (c *Client) GetStatus() (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(http.MethodGet, "/api/v1/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSources lists known and created sources
func (c *Client) GetSources() (*api.SourceListResponse, error) {
	var resp api.SourceListResponse
	if err := c.do(http.MethodGet, "/api/v1/sources", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartSource starts a source by name
func (c *Client) StartSource(name string) error {
	var resp api.SuccessResponse
	return c.do(http.MethodPost, "/api/v1/sources/"+url.PathEscape(name)+"/start", nil, &resp)
}

// StopSource stops a source by name
func (c *Client) StopSource(name string) error {
	var resp api.SuccessResponse
	return c.do(http.MethodPost, "/api/v1/sources/"+url.PathEscape(name)+"/stop", nil, &resp)
}

// GetBlacklist reads a source's blacklist patterns
func (c *Client) GetBlacklist(name string) (*api.BlacklistResponse, error) {
	var resp api.BlacklistResponse
	if err := c.do(http.MethodGet, "/api/v1/sources/"+url.PathEscape(name)+"/blacklist", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PutBlacklist replaces a source's blacklist with newline separated patterns
func (c *Client) PutBlacklist(name, text string) (*api.BlacklistResponse, error) {
	var resp api.BlacklistResponse
	if err := c.do(http.MethodPut, "/api/v1/sources/"+url.PathEscape(name)+"/blacklist", strings.NewReader(text), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetFeeding pauses or resumes every source
func (c *Client) SetFeeding(feed bool) (*api.FeedResponse, error) {
	path := "/api/v1/feed/pause"
	if feed {
		path = "/api/v1/feed/resume"
	}
	var resp api.FeedResponse
	if err := c.do(http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMatchers lists the committed matchers
func (c *Client) GetMatchers() (*api.MatcherListResponse, error) {
	var resp api.MatcherListResponse
	if err := c.do(http.MethodGet, "/api/v1/matchers", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearMatchers resets matcher state and stored values, optionally only
// for one presentation id
func (c *Client) ClearMatchers(presentation *int) error {
	path := "/api/v1/matchers/clear"
	if presentation != nil {
		path += "?presentation=" + strconv.Itoa(*presentation)
	}
	var resp api.SuccessResponse
	return c.do(http.MethodPost, path, nil, &resp)
}

// ValueParams selects stored values
type ValueParams struct {
	Matchers     []string
	Presentation *int
	Limit        int
}

func (p ValueParams) query() string {
	query := url.Values{}
	if len(p.Matchers) > 0 {
		query.Set("matcher", strings.Join(p.Matchers, ","))
	}
	if p.Presentation != nil {
		query.Set("presentation", strconv.Itoa(*p.Presentation))
	}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if len(query) == 0 {
		return ""
	}
	return "?" + query.Encode()
}

// GetValues reads stored values
func (c *Client) GetValues(params ValueParams) (*api.ValuesResponse, error) {
	var resp api.ValuesResponse
	if err := c.do(http.MethodGet, "/api/v1/values"+params.query(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamValues follows the SSE value stream and calls fn for every value
// until ctx is done or the server closes the stream
func (c *Client) StreamValues(ctx context.Context, params ValueParams, fn func(api.ValueResponse)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/values/stream"+params.query(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.addAuthHeader(req)

	resp, err := c.streamer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var v api.ValueResponse
		if err := json.Unmarshal([]byte(data), &v); err == nil {
			fn(v)
		}
	}
}

func (c *Client) do(method, path string, body io.Reader, v interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}
	c.addAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return responseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func responseError(resp *http.Response) error {
	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Code != "" {
		return fmt.Errorf("%s: %s", errResp.Code, errResp.Error)
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}

// addAuthHeader adds the Authorization header if a token is available
func (c *Client) addAuthHeader(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
