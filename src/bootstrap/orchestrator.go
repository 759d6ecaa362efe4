package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/mosaicnetworks/chainboot/src/acquire"
	"github.com/mosaicnetworks/chainboot/src/bootstrap/state"
	"github.com/mosaicnetworks/chainboot/src/chainparams"
	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/mosaicnetworks/chainboot/src/config"
	"github.com/mosaicnetworks/chainboot/src/confmerge"
	"github.com/mosaicnetworks/chainboot/src/install"
	"github.com/mosaicnetworks/chainboot/src/journal"
	"github.com/mosaicnetworks/chainboot/src/stage"
	"github.com/mosaicnetworks/chainboot/src/verify"
	"github.com/sirupsen/logrus"
)

// DefaultDownloadTimeout bounds the wait for the first response bytes.
const DefaultDownloadTimeout = 60 * time.Second

// Recorder stores finished runs.
type Recorder interface {
	Append(r *journal.Record) error
}

// Deps are the collaborators of an Orchestrator. Zero values are replaced by
// the production implementations.
type Deps struct {
	// Params overrides the network table entry selected by the config.
	Params *chainparams.Params

	Downloader acquire.Downloader
	Extractor  stage.Extractor

	// FreeSpace returns the bytes available to the data directory.
	FreeSpace func(path string) (uint64, error)

	// Journal, if set, receives a Record after every run.
	Journal Recorder
}

// Orchestrator sequences the two stages of a bootstrap and owns the state of
// the current run.
type Orchestrator struct {
	app    *AppContext
	conf   *config.Config
	params *chainparams.Params

	verifier *verify.Verifier
	stager   *stage.Stager
	merger   *confmerge.Merger

	downloader acquire.Downloader
	freeSpace  func(string) (uint64, error)
	journal    Recorder

	state state.Manager

	obsLock   sync.RWMutex
	observers []Observer

	cancelled int32

	runLock      sync.RWMutex
	mode         Mode
	filePath     string
	progress     int
	status       string
	lastErr      error
	configMerged bool
	digest       string
	cancelRun    context.CancelFunc

	logger *logrus.Entry
}

func newOrchestrator(app *AppContext, conf *config.Config, deps Deps) (*Orchestrator, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	params := deps.Params
	if params == nil {
		p, err := conf.Params()
		if err != nil {
			return nil, err
		}
		params = p
	}

	if err := params.Identity(); err != nil {
		return nil, common.WrapError(common.ConfigurationError, err, "network parameters are incomplete")
	}

	logger := conf.Logger()

	if deps.Downloader == nil {
		deps.Downloader = acquire.NewHTTPDownloader(DefaultDownloadTimeout)
	}
	if deps.FreeSpace == nil {
		deps.FreeSpace = common.AvailableDiskSpace
	}

	o := &Orchestrator{
		app:        app,
		conf:       conf,
		params:     params,
		verifier:   verify.NewVerifier(params, verify.RequiredEntries, logger.WithField("component", "verify")),
		stager:     stage.NewStager(filepath.Dir(conf.MarkerPath()), filepath.Base(conf.MarkerPath()), deps.Extractor, logger.WithField("component", "stage")),
		merger:     confmerge.NewMerger(conf.ExcludedDirective, logger.WithField("component", "confmerge")),
		downloader: deps.Downloader,
		freeSpace:  deps.FreeSpace,
		journal:    deps.Journal,
		logger:     logger,
	}

	logger.WithFields(logrus.Fields{
		"datadir": conf.DataDir,
		"network": params.Name,
		"url":     o.conf.SnapshotURL(o.params),
	}).Debug("Bootstrap orchestrator ready")

	return o, nil
}

// AddObserver registers an Observer.
func (o *Orchestrator) AddObserver(obs Observer) {
	o.obsLock.Lock()
	defer o.obsLock.Unlock()
	o.observers = append(o.observers, obs)
}

// Params returns the network the orchestrator bootstraps.
func (o *Orchestrator) Params() *chainparams.Params {
	return o.params
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//Mode and file selection

// SetMode selects the source of the next stage I. It fails while a run is
// active.
func (o *Orchestrator) SetMode(m Mode) error {
	o.runLock.Lock()
	if o.state.Running() {
		o.runLock.Unlock()
		return common.NewError(common.ConcurrencyError, "cannot change mode while bootstrap is running")
	}
	o.mode = m
	o.runLock.Unlock()

	o.emitStateChanged()
	return nil
}

// Mode ...
func (o *Orchestrator) Mode() Mode {
	o.runLock.RLock()
	defer o.runLock.RUnlock()
	return o.mode
}

// SetFilePath selects the archive used in File mode. It fails while a run is
// active.
func (o *Orchestrator) SetFilePath(path string) error {
	o.runLock.Lock()
	if o.state.Running() {
		o.runLock.Unlock()
		return common.NewError(common.ConcurrencyError, "cannot change file while bootstrap is running")
	}
	o.filePath = path
	o.runLock.Unlock()

	o.emitStateChanged()
	return nil
}

// FilePath ...
func (o *Orchestrator) FilePath() string {
	o.runLock.RLock()
	defer o.runLock.RUnlock()
	return o.filePath
}

// FilePathOK reports whether the selected archive exists.
func (o *Orchestrator) FilePathOK() bool {
	p := o.FilePath()
	if p == "" {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//Queries

// IsRunning reports whether a stage is running.
func (o *Orchestrator) IsRunning() bool {
	return o.state.Running()
}

// Phase returns what the current run is doing.
func (o *Orchestrator) Phase() state.Phase {
	return o.state.GetPhase()
}

// Progress returns the completion percentage of the current step.
func (o *Orchestrator) Progress() int {
	o.runLock.RLock()
	defer o.runLock.RUnlock()
	return o.progress
}

// Status returns the last status line.
func (o *Orchestrator) Status() string {
	o.runLock.RLock()
	defer o.runLock.RUnlock()
	return o.status
}

// IsCancelled reports whether a cancellation was requested during the
// current or last run.
func (o *Orchestrator) IsCancelled() bool {
	return atomic.LoadInt32(&o.cancelled) == 1
}

// IsConfigMerged reports whether the last stage II merged a configuration.
func (o *Orchestrator) IsConfigMerged() bool {
	o.runLock.RLock()
	defer o.runLock.RUnlock()
	return o.configMerged
}

// LastRunError returns the error of the last run, or nil. It does not wait.
func (o *Orchestrator) LastRunError() error {
	o.runLock.RLock()
	defer o.runLock.RUnlock()
	return o.lastErr
}

// LatestRunSucceeded waits for the current run and returns its error message,
// empty on success.
func (o *Orchestrator) LatestRunSucceeded() (bool, string) {
	o.Wait()
	if err := o.LastRunError(); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// Wait blocks until the current run completes. It returns immediately if no
// run is active.
func (o *Orchestrator) Wait() {
	o.state.WaitRoutines()
}

// StageIPossible checks the preconditions of StartAcquireAndStage.
func (o *Orchestrator) StageIPossible() error {
	return o.possible()
}

// StageIIPossible checks the preconditions of StartInstall.
func (o *Orchestrator) StageIIPossible() error {
	return o.possible()
}

// StageIIPrepared reports whether a verified staging folder is waiting to be
// installed.
func (o *Orchestrator) StageIIPrepared() bool {
	return o.stager.Verified()
}

// GetStats returns the state of the orchestrator as strings.
func (o *Orchestrator) GetStats() map[string]string {
	o.runLock.RLock()
	defer o.runLock.RUnlock()

	lastErr := ""
	if o.lastErr != nil {
		lastErr = o.lastErr.Error()
	}

	return map[string]string{
		"network":           o.params.Name,
		"datadir":           o.conf.DataDir,
		"mode":              o.mode.String(),
		"file_path":         o.filePath,
		"phase":             o.state.GetPhase().String(),
		"progress":          strconv.Itoa(o.progress),
		"status":            o.status,
		"running":           strconv.FormatBool(o.state.Running()),
		"cancelled":         strconv.FormatBool(o.IsCancelled()),
		"config_merged":     strconv.FormatBool(o.configMerged),
		"last_error":        lastErr,
		"stage_ii_prepared": strconv.FormatBool(o.stager.Verified()),
		"required_space":    humanize.IBytes(o.conf.RequiredSpace(o.params)),
	}
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//Commands

// StartAcquireAndStage starts stage I in the background. It is rejected if a
// run is active or if free space is short. Otherwise the leftovers of earlier
// attempts are removed before the run starts.
func (o *Orchestrator) StartAcquireAndStage() error {
	return o.start(StageI, o.cleanup, o.acquireAndStage)
}

// StartInstall starts stage II in the background, under the same
// preconditions as StartAcquireAndStage. A missing staging folder is reported
// by the run itself.
func (o *Orchestrator) StartInstall() error {
	return o.start(StageII, nil, o.install)
}

// Cancel asks the current download to stop. It has no effect on the other
// steps.
func (o *Orchestrator) Cancel() {
	atomic.StoreInt32(&o.cancelled, 1)

	o.runLock.RLock()
	cancel := o.cancelRun
	o.runLock.RUnlock()

	if o.state.GetPhase() == state.Acquiring && cancel != nil {
		cancel()
	}

	o.logger.Info("Bootstrap cancellation requested")
}

// CleanUp removes the staging folder and the downloaded archive. It fails
// while a run is active.
func (o *Orchestrator) CleanUp() error {
	if !o.state.Acquire() {
		return common.NewError(common.ConcurrencyError, "cannot clean up while bootstrap is running")
	}
	defer o.state.Release()

	return o.cleanup()
}

// Startup is run by the node before it opens its chain data. It discards an
// unverified staging folder, and completes the installation of a verified
// one.
func (o *Orchestrator) Startup() error {
	if !o.stager.Exists() {
		o.logger.Debug("No staged snapshot")
		return nil
	}

	if !o.stager.Verified() {
		o.logger.WithField("dir", o.stager.Dir()).Warn("Discarding unverified staging folder")
		return o.CleanUp()
	}

	o.logger.Info("Installing staged snapshot")

	if err := o.StartInstall(); err != nil {
		return err
	}
	o.Wait()

	return o.LastRunError()
}

// Close waits for the current run and releases the orchestrator from its
// context.
func (o *Orchestrator) Close() {
	o.Wait()
	if o.app != nil {
		o.app.release(o)
	}
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++

func (o *Orchestrator) possible() error {
	if o.state.Running() {
		return common.NewError(common.ConcurrencyError, "bootstrap is already running")
	}
	return o.checkResources()
}

func (o *Orchestrator) checkResources() error {
	need := o.conf.RequiredSpace(o.params)

	free, err := o.freeSpace(o.conf.DataDir)
	if err != nil {
		return common.WrapError(common.ResourceError, err, "cannot determine free space in %s", o.conf.DataDir)
	}

	if free < need {
		return common.NewError(common.ResourceError,
			"not enough free space in %s: %s available, %s required",
			o.conf.DataDir, humanize.IBytes(free), humanize.IBytes(need))
	}

	return nil
}

// cleanup removes the staging folder and the downloaded archive, unless the
// archive is the file selected by the user.
func (o *Orchestrator) cleanup() error {
	archive := o.conf.ArchivePath()

	o.runLock.RLock()
	if o.mode == File && samePath(o.filePath, archive) {
		archive = ""
	}
	o.runLock.RUnlock()

	return install.Cleanup(o.stager.Dir(), archive)
}

func (o *Orchestrator) setPhase(p state.Phase) {
	o.state.SetPhase(p)
	o.logger.WithField("phase", p).Debug("Bootstrap phase")
	o.emitStateChanged()
}

func (o *Orchestrator) setProgress(status string, progress int) {
	o.runLock.Lock()
	o.status = status
	o.progress = progress
	o.runLock.Unlock()

	o.obsLock.RLock()
	defer o.obsLock.RUnlock()
	for _, obs := range o.observers {
		obs.ProgressChanged(status, progress)
	}
}

func (o *Orchestrator) emitStateChanged() {
	o.obsLock.RLock()
	defer o.obsLock.RUnlock()
	for _, obs := range o.observers {
		obs.StateChanged()
	}
}

func (o *Orchestrator) emitCompleted(s Stage, success bool, err string) {
	o.obsLock.RLock()
	defer o.obsLock.RUnlock()
	for _, obs := range o.observers {
		switch s {
		case StageI:
			obs.StageICompleted(success, err)
		case StageII:
			obs.StageIICompleted(success, err)
		}
	}
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	aa, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return aa == bb
}
