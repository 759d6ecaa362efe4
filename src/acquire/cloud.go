package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/paulbellamy/ratecounter"
	"github.com/sirupsen/logrus"
)

// DefaultSampleWindow is the period over which the download rate is
// averaged.
const DefaultSampleWindow = 5 * time.Second

// tmpSuffix is appended to the archive path while it is being downloaded.
const tmpSuffix = ".tmp"

// Cloud is the Acquirer streaming a snapshot from a URL into Path. The
// archive only appears under Path once the whole transfer succeeded; until
// then it lives in Path + ".tmp", which is removed on any failure.
type Cloud struct {
	URL        string
	Path       string
	Downloader Downloader

	// Cancelled is polled on every progress callback.
	Cancelled func() bool

	// Progress, if set, receives a status line on every progress callback.
	Progress ProgressReporter

	// SampleWindow is the period the reported rate is averaged over.
	SampleWindow time.Duration

	logger *logrus.Entry
}

// NewCloud ...
func NewCloud(url, path string,
	downloader Downloader,
	cancelled func() bool,
	progress ProgressReporter,
	logger *logrus.Entry) *Cloud {

	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &Cloud{
		URL:          url,
		Path:         path,
		Downloader:   downloader,
		Cancelled:    cancelled,
		Progress:     progress,
		SampleWindow: DefaultSampleWindow,
		logger:       logger,
	}
}

// TmpPath returns the path of the partial download.
func (c *Cloud) TmpPath() string {
	return c.Path + tmpSuffix
}

// Acquire downloads the archive. A cancellation yields a CancelledError, any
// other transfer failure a TransportError.
func (c *Cloud) Acquire(ctx context.Context) (string, error) {
	if c.URL == "" {
		return "", common.NewError(common.ConfigurationError, "bootstrap URL is empty")
	}

	tmp := c.TmpPath()

	for _, p := range []string{c.Path, tmp} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return "", common.WrapError(common.IOError, err, "failed to remove %s", p)
		}
	}

	f, err := os.Create(tmp)
	if err != nil {
		return "", common.WrapError(common.IOError, err, "failed to create file: %s", tmp)
	}

	c.report(fmt.Sprintf("Downloading %s", c.URL), 0)

	c.logger.WithFields(logrus.Fields{
		"url":  c.URL,
		"path": tmp,
	}).Info("Downloading snapshot")

	counter := ratecounter.NewRateCounter(c.SampleWindow)
	seconds := int64(c.SampleWindow / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	var received int64
	progress := 0

	err = c.Downloader.Download(ctx, c.URL, f, func(total, now int64) bool {
		if c.Cancelled() {
			return false
		}

		counter.Incr(now - received)
		received = now
		speed := counter.Rate() / seconds

		if now > 0 && total > 0 && total >= now {
			progress = int(100 * now / total)
		}

		c.report(fmt.Sprintf("Downloading %s (%s/s)",
			humanize.IBytes(uint64(now)),
			humanize.IBytes(uint64(speed))), progress)

		return true
	})

	if cerr := f.Close(); err == nil && cerr != nil {
		err = common.WrapError(common.IOError, cerr, "failed to write %s", tmp)
	}

	if err != nil {
		if rerr := os.Remove(tmp); rerr != nil && !os.IsNotExist(rerr) {
			c.logger.WithError(rerr).WithField("path", tmp).Warn("Cannot remove partial download")
		}

		if errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) || c.Cancelled() {
			return "", common.NewError(common.CancelledError, "download of %s cancelled", c.URL)
		}

		var cerr *common.Error
		if errors.As(err, &cerr) {
			return "", err
		}

		return "", common.WrapError(common.TransportError, err, "cannot download snapshot")
	}

	if err := os.Rename(tmp, c.Path); err != nil {
		os.Remove(tmp)
		return "", common.WrapError(common.IOError, err, "failed to rename %s", tmp)
	}

	c.report(fmt.Sprintf("Downloaded %s", humanize.IBytes(uint64(received))), 100)

	c.logger.WithFields(logrus.Fields{
		"path":  c.Path,
		"bytes": received,
	}).Info("Snapshot downloaded")

	return c.Path, nil
}

func (c *Cloud) report(status string, progress int) {
	if c.Progress != nil {
		c.Progress(status, progress)
	}
}
