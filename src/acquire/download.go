package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/mosaicnetworks/chainboot/src/version"
)

const (
	maxRedirects      = 3
	defaultBufferSize = 32 * 1024
)

// ErrAborted is returned by a Downloader when the progress callback asked to
// stop the transfer.
var ErrAborted = errors.New("transfer aborted")

// ProgressFunc is called whenever bytes arrive. total is -1 when the size of
// the content is unknown. Returning false aborts the transfer.
type ProgressFunc func(total, now int64) bool

// Downloader streams the content behind a URL into a writer.
type Downloader interface {
	Download(ctx context.Context, url string, dst io.Writer, fn ProgressFunc) error
}

// StatusError reports a response that is not a 2xx.
type StatusError struct {
	URL  string
	Code int
}

// Error ...
func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s failed with HTTP code: %d", e.URL, e.Code)
}

// HTTPDownloader is a Downloader over HTTP(S). It follows at most three
// redirects and identifies itself with the version of this program.
type HTTPDownloader struct {
	client     *http.Client
	userAgent  string
	bufferSize int
}

// NewHTTPDownloader returns a downloader whose requests fail after timeout
// without any byte being received. A zero timeout means no timeout.
func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
		},
	}

	return &HTTPDownloader{
		client:     client,
		userAgent:  "chainboot/" + version.Version,
		bufferSize: defaultBufferSize,
	}
}

// Download implements Downloader.
func (d *HTTPDownloader) Download(ctx context.Context, url string, dst io.Writer, fn ProgressFunc) error {
	if url == "" {
		return errors.New("url is empty")
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s failed with error: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}

	total := resp.ContentLength
	var now int64

	if fn != nil && !fn(total, now) {
		return ErrAborted
	}

	buf := make([]byte, d.bufferSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return common.WrapError(common.IOError, werr, "failed to save download of %s", url)
			}
			now += int64(n)
			if fn != nil && !fn(total, now) {
				return ErrAborted
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("download %s failed with error: %w", url, rerr)
		}
	}

	if total > 0 && now != total {
		return fmt.Errorf("download %s truncated: %d of %d bytes", url, now, total)
	}

	return nil
}
