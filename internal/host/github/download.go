package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Download fetches url into dest. The body is written to a temp file beside
// dest which is synced and renamed into place only after the full body
// arrived; on failure nothing is left at dest.
func (c *Client) Download(ctx context.Context, url, dest string) (written int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	c.decorate(req, c.sendsToken(url))

	// #nosec G107 -- url comes from release metadata
	resp, err := c.httpClient(c.DownloadTimeout).Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch %s: %v", ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, fmt.Errorf("%w: status %d from %s: %s", ErrNetwork, resp.StatusCode, url, string(body))
	}

	dir := filepath.Dir(dest)
	// #nosec G301 -- dest is under the install root
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("create temp for %s: %w", dest, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	written, err = io.Copy(tmp, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: read body of %s: %v", ErrNetwork, url, err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		err = fmt.Errorf("%w: short body from %s: got %d of %d bytes", ErrNetwork, url, written, resp.ContentLength)
		return 0, err
	}
	if err = errors.Join(tmp.Sync(), tmp.Close()); err != nil {
		return 0, fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err = os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("move download to %s: %w", dest, err)
	}
	return written, nil
}
