package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const DefaultUserAgent = "mngr"

func NewRetryableClient(retryMax int, timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = nil
	c.RetryMax = retryMax
	c.HTTPClient.Timeout = timeout
	return c
}

type Downloader struct {
	client    *retryablehttp.Client
	userAgent string
}

func NewDownloader(client *retryablehttp.Client, userAgent string) *Downloader {
	if client == nil {
		client = NewRetryableClient(3, 3*time.Minute)
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Downloader{client: client, userAgent: userAgent}
}

// Download streams url into w and returns the number of bytes written
// together with their sha256 checksum.
func (d *Downloader) Download(ctx context.Context, url string, w io.Writer) (int64, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", d.userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	checksumHash := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, checksumHash), resp.Body)
	if err != nil {
		return n, "", fmt.Errorf("failed to write file: %w", err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, "", fmt.Errorf("unexpected content length: %d (should be %d)", n, resp.ContentLength)
	}
	return n, hex.EncodeToString(checksumHash.Sum(nil)), nil
}
