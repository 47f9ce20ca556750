// Package provider is the HTTP client for the remote storage account the
// metadata mirror is reconciled against. The provider exposes a Dropbox-style
// v1 API: metadata listings, file upload, move/rename and share links. The
// client carries no global state; the opaque API token comes from the caller's
// session on every call.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Entry is one object in a remote directory listing.
type Entry struct {
	Path        string `json:"path"`
	IsDir       bool   `json:"is_dir"`
	Bytes       int64  `json:"bytes"`
	ClientMtime string `json:"client_mtime"`
	Modified    string `json:"modified"`
	Revision    int64  `json:"revision"`
}

// Metadata is the remote listing of one directory.
type Metadata struct {
	Path     string  `json:"path"`
	IsDir    bool    `json:"is_dir"`
	Contents []Entry `json:"contents"`
}

type ShareLink struct {
	URL string `json:"url"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// BaseName returns the last segment of a provider path, the join key between
// the remote listing and the local mirror.
func BaseName(p string) string {
	p = strings.TrimRight(p, "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

func escapePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func (c *Client) do(req *http.Request, token string) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote provider request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("remote provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp, nil
}

// Metadata fetches the remote listing for one directory.
func (c *Client) Metadata(ctx context.Context, token, path string) (*Metadata, error) {
	u := c.baseURL + "/metadata/auto" + escapePath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var meta Metadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}

	return &meta, nil
}

// PutFile uploads file bytes to the given remote path, overwriting any
// existing object.
func (c *Client) PutFile(ctx context.Context, token, path string, data io.Reader) error {
	u := c.baseURL + "/files_put/auto" + escapePath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, data)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(req, token)
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}

// FileMove moves or renames a remote object.
func (c *Client) FileMove(ctx context.Context, token, fromPath, toPath string) error {
	form := url.Values{}
	form.Set("root", "auto")
	form.Set("from_path", fromPath)
	form.Set("to_path", toPath)

	u := c.baseURL + "/fileops/move"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req, token)
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}

// Shares asks the provider for a public sharing link to a remote object.
func (c *Client) Shares(ctx context.Context, token, path string) (*ShareLink, error) {
	u := c.baseURL + "/shares/auto" + escapePath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var link ShareLink
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return nil, fmt.Errorf("failed to decode share response: %w", err)
	}

	return &link, nil
}
