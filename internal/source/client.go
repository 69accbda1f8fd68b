package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const fetchTimeout = 60 * time.Second

// Client fetches stems over HTTP from a stem server exposing
// GET {base}/stems/{session}/{name}{ext}.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch tries each known extension and returns the first hit.
// A 404 on every extension means the stem is absent for this session.
func (c *Client) Fetch(ctx context.Context, session, name string) ([]byte, string, error) {
	for _, ext := range stemExts {
		stemURL := fmt.Sprintf("%s/stems/%s/%s%s",
			c.BaseURL, url.PathEscape(session), url.PathEscape(name), ext)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, stemURL, nil)
		if err != nil {
			return nil, "", fmt.Errorf("building request for %s: %w", name, err)
		}
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("fetching stem %s: %w", name, err)
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", fmt.Errorf("fetching stem %s: unexpected status %s", name, resp.Status)
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, "", fmt.Errorf("reading stem %s: %w", name, err)
		}
		return data, ext, nil
	}
	return nil, "", ErrAbsent
}
