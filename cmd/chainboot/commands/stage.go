package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mosaicnetworks/chainboot/src/bootstrap"
	"github.com/spf13/cobra"
)

//NewStageICmd returns the command that downloads, extracts and verifies a
//snapshot
func NewStageICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage1",
		Short: "Acquire, extract and verify a snapshot",
		RunE:  runStageI,
	}
	AddStageIFlags(cmd)
	return cmd
}

//AddStageIFlags adds flags to the stage1 command
func AddStageIFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", _config.Mode, "Where the snapshot comes from: cloud or file")
	cmd.Flags().String("file", _config.File, "Snapshot archive to use in file mode")
}

//NewStageIICmd returns the command that installs a verified snapshot
func NewStageIICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage2",
		Short: "Install the verified snapshot into the data directory",
		RunE:  runStageII,
	}
}

//NewStartupCmd returns the command a node runs before opening its chain data
func NewStartupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "startup",
		Short: "Complete or discard a pending bootstrap",
		RunE:  runStartup,
	}
}

//NewCleanupCmd returns the command that removes staged data
func NewCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove the staging folder and downloaded archive",
		RunE:  runCleanup,
	}
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runStageI(cmd *cobra.Command, args []string) error {
	mode, err := bootstrap.ParseMode(_config.Mode)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	o := s.orchestrator

	if err := o.SetMode(mode); err != nil {
		return err
	}
	if err := o.SetFilePath(_config.File); err != nil {
		return err
	}
	if mode == bootstrap.File && !o.FilePathOK() {
		return fmt.Errorf("snapshot file %q does not exist", _config.File)
	}

	o.AddObserver(newPrinter())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := o.StartAcquireAndStage(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		o.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-sigCh:
		fmt.Println()
		o.Cancel()
		<-done
	}

	return result(o)
}

func runStageII(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	o := s.orchestrator

	if !o.StageIIPrepared() {
		return errors.New("no verified snapshot is staged, run stage1 first")
	}

	o.AddObserver(newPrinter())

	if err := o.StartInstall(); err != nil {
		return err
	}

	if err := result(o); err != nil {
		return err
	}

	if o.IsConfigMerged() {
		fmt.Println("Node configuration merged")
	}

	return nil
}

func runStartup(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	return s.orchestrator.Startup()
}

func runCleanup(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	return s.orchestrator.CleanUp()
}

func result(o *bootstrap.Orchestrator) error {
	if ok, msg := o.LatestRunSucceeded(); !ok {
		return errors.New(msg)
	}
	return nil
}

// newPrinter prints progress to stdout when the percentage or the step
// changes.
func newPrinter() bootstrap.Observer {
	last, lastStep := -1, ""
	return bootstrap.ObserverFuncs{
		OnProgressChanged: func(status string, progress int) {
			step := status
			if f := strings.Fields(status); len(f) > 0 {
				step = f[0]
			}
			if progress == last && step == lastStep {
				return
			}
			last, lastStep = progress, step
			fmt.Printf("\r%3d%% %-60s", progress, status)
		},
		OnStageICompleted: func(success bool, err string) {
			fmt.Println()
		},
		OnStageIICompleted: func(success bool, err string) {
			fmt.Println()
		},
	}
}
