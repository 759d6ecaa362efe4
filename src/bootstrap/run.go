package bootstrap

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/chainboot/src/acquire"
	"github.com/mosaicnetworks/chainboot/src/bootstrap/state"
	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/mosaicnetworks/chainboot/src/install"
	"github.com/mosaicnetworks/chainboot/src/journal"
	"github.com/mosaicnetworks/chainboot/src/verify"
	"github.com/sirupsen/logrus"
)

// task is the body of a run. mode and filePath are the selection captured
// when the run started.
type task func(ctx context.Context, mode Mode, filePath string) error

// start claims the run slot, checks free space, runs prepare synchronously,
// resets the run state and launches t in the background.
func (o *Orchestrator) start(s Stage, prepare func() error, t task) error {
	if !o.state.Acquire() {
		return common.NewError(common.ConcurrencyError, "bootstrap is already running")
	}

	if err := o.checkResources(); err != nil {
		o.state.Release()
		return err
	}

	if prepare != nil {
		if err := prepare(); err != nil {
			o.state.Release()
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	o.runLock.Lock()
	o.progress = 0
	o.status = ""
	o.lastErr = nil
	o.configMerged = false
	o.digest = ""
	o.cancelRun = cancel
	mode, filePath := o.mode, o.filePath
	o.runLock.Unlock()

	atomic.StoreInt32(&o.cancelled, 0)

	logger := o.logger.WithFields(logrus.Fields{
		"stage": s,
		"mode":  mode,
	})
	logger.Info("Bootstrap started")

	o.emitStateChanged()

	started := time.Now()

	o.state.GoFunc(func() {
		defer cancel()
		err := protect(func() error { return t(ctx, mode, filePath) })
		o.finish(s, mode, started, err, logger)
	})

	return nil
}

// finish captures the outcome of a run, records it and fires the completion
// notification. The run slot is released after it returns.
func (o *Orchestrator) finish(s Stage, mode Mode, started time.Time, err error, logger *logrus.Entry) {
	o.runLock.Lock()
	o.lastErr = err
	o.cancelRun = nil
	merged, digest := o.configMerged, o.digest
	o.runLock.Unlock()

	if err != nil {
		logger.WithError(err).Error("Bootstrap failed")
	} else {
		logger.WithField("elapsed", time.Since(started)).Info("Bootstrap completed")
	}

	if o.journal != nil {
		rec := &journal.Record{
			Stage:        s.String(),
			Mode:         mode.String(),
			Started:      started,
			Finished:     time.Now(),
			Success:      err == nil,
			Digest:       digest,
			ConfigMerged: merged,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if jerr := o.journal.Append(rec); jerr != nil {
			logger.WithError(jerr).Warn("Cannot record run")
		}
	}

	o.state.SetPhase(state.Idle)

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	o.emitCompleted(s, err == nil, msg)
	o.emitStateChanged()
}

// acquireAndStage is stage I.
func (o *Orchestrator) acquireAndStage(ctx context.Context, mode Mode, filePath string) error {
	o.setPhase(state.Acquiring)

	url := o.conf.SnapshotURL(o.params)

	var acq acquire.Acquirer
	switch mode {
	case File:
		acq = acquire.NewFile(filePath)
	default:
		acq = acquire.NewCloud(url,
			o.conf.ArchivePath(),
			o.downloader,
			o.IsCancelled,
			o.setProgress,
			o.logger.WithField("component", "acquire"))
	}

	archive, err := acq.Acquire(ctx)
	if err != nil {
		return err
	}

	if err := o.verifier.Container(archive); err != nil {
		if mode == Cloud {
			return common.WrapError(common.FormatError, err, "Try to download bootstrap file manually: %s", url)
		}
		return err
	}

	o.setPhase(state.Extracting)
	o.setProgress("Unzipping", 0)

	err = o.stager.Extract(archive, func(done, total int) {
		o.setProgress(fmt.Sprintf("Unzipping %d/%d", done, total), 100*done/total)
	})
	if err != nil {
		return err
	}

	o.setPhase(state.Verifying)
	o.setProgress("Verifying", 0)

	if err := o.stager.Unmark(); err != nil {
		return err
	}

	if err := o.verifier.Completeness(o.stager.Dir()); err != nil {
		return err
	}

	if err := o.verifier.Identity(o.stager.Dir()); err != nil {
		return common.WrapError(common.IdentityError, err, "Bootstrap verification failed with reason")
	}

	digest, err := verify.Digest(archive)
	if err != nil {
		return err
	}

	if err := o.stager.MarkVerified(digest); err != nil {
		return err
	}

	o.runLock.Lock()
	o.digest = digest
	o.runLock.Unlock()

	o.setProgress("Verified", 100)

	return nil
}

// install is stage II.
func (o *Orchestrator) install(ctx context.Context, mode Mode, filePath string) error {
	o.setPhase(state.Installing)

	if o.conf.ReverifyDigest {
		if err := o.reverify(mode, filePath); err != nil {
			return err
		}
	}

	if digest, err := o.stager.Digest(); err == nil {
		o.runLock.Lock()
		o.digest = digest
		o.runLock.Unlock()
	}

	inst := install.NewInstaller(o.conf.DataDir,
		o.stager.Dir(),
		o.conf.ArchivePath(),
		o.verifier.Entries(),
		o.conf.LiveConfigPath(o.params),
		o.params.ConfigFileName,
		o.merger,
		o.logger.WithField("component", "install"))

	inst.OnStep = func(s install.Step) {
		switch s {
		case install.MergeStep:
			o.setPhase(state.Merging)
		case install.CleanupStep:
			o.setPhase(state.CleaningUp)
		}
	}

	res, err := inst.Install(o.setProgress)

	o.runLock.Lock()
	o.configMerged = res.ConfigMerged
	o.runLock.Unlock()

	return err
}

// reverify compares the archive, when it is still around, with the digest
// recorded in the marker.
func (o *Orchestrator) reverify(mode Mode, filePath string) error {
	archive := o.conf.ArchivePath()
	if mode == File && filePath != "" {
		archive = filePath
	}

	if _, err := os.Stat(archive); err != nil {
		o.logger.WithField("archive", archive).Warn("Archive is gone, digest not re-checked")
		return nil
	}

	want, err := o.stager.Digest()
	if err != nil {
		return err
	}

	o.setProgress("Verifying archive digest", 0)

	return verify.CheckDigest(archive, want)
}

// protect turns a panic of f into an error.
func protect(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bootstrap run panicked: %v", r)
		}
	}()
	return f()
}
