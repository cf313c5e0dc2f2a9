package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// SignedDownloadURL asks the backend for a presigned URL for storagePath and
// rewrites the configured storage host so the URL resolves outside the
// backend's network.
func (c *Client) SignedDownloadURL(ctx context.Context, storagePath string) (string, error) {
	storagePath = strings.TrimLeft(strings.TrimSpace(storagePath), "/")
	if storagePath == "" {
		return "", errors.New("storage path is required")
	}
	segments := strings.Split(storagePath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/signed_download/", nil, nil)
	if err != nil {
		return "", err
	}
	req.URL.RawPath = req.URL.Path + strings.Join(segments, "/")
	req.URL.Path = req.URL.Path + storagePath

	resp, err := c.send(c.http, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var signed SignedURL
	if err := decodeJSON(resp.Body, &signed); err != nil {
		return "", fmt.Errorf("decode signed url: %w", err)
	}
	if strings.TrimSpace(signed.URL) == "" {
		return "", errors.New("signed url response missing url")
	}
	return RewriteHost(signed.URL, c.storageHost, c.storageAlias)
}

// RewriteHost replaces the hostname of rawURL with alias when it equals host.
// The port is preserved.
func RewriteHost(rawURL, host, alias string) (string, error) {
	if host == "" || alias == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse signed url: %w", err)
	}
	if !strings.EqualFold(u.Hostname(), host) {
		return rawURL, nil
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(alias, port)
	} else {
		u.Host = alias
	}
	return u.String(), nil
}

// Open starts a direct download of rawURL. Presigned URLs carry their own
// credentials, so no token is attached. The size is -1 when the server does
// not advertise one.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("X-Request-ID", c.requestIDFor(ctx))
	resp, err := c.send(c.transfer, req)
	if err != nil {
		return nil, -1, err
	}
	return resp.Body, resp.ContentLength, nil
}

// Fetch streams rawURL into w and returns the number of bytes written.
func (c *Client) Fetch(ctx context.Context, rawURL string, w io.Writer, onProgress ProgressFunc) (int64, error) {
	body, _, err := c.Open(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return io.Copy(w, &countingReader{r: body, onProgress: onProgress})
}
