package commands

import (
	"fmt"
	"sort"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/spf13/cobra"
)

//NewStatusCmd returns the command that prints the bootstrap state and the
//recent runs
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the bootstrap state and recent runs",
		RunE:  runStatus,
	}
	cmd.Flags().Int("history", _config.History, "Number of past runs to show")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	// reading the state must not start the service
	_config.Bootstrap.NoService = true

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	stats := s.orchestrator.GetStats()

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("%-18s %s\n", k, stats[k])
	}

	if free, err := common.AvailableDiskSpace(_config.Bootstrap.DataDir); err == nil {
		fmt.Printf("%-18s %s\n", "free_space", humanize.IBytes(free))
	}

	if s.journal == nil {
		return nil
	}

	runs, err := s.journal.List(_config.History)
	if err != nil {
		return err
	}

	if len(runs) > 0 {
		fmt.Println()
	}

	for _, r := range runs {
		outcome := "ok"
		if !r.Success {
			outcome = "failed: " + r.Error
		}
		fmt.Printf("#%d stage %-2s %-5s %s (%s) %s\n",
			r.ID,
			r.Stage,
			r.Mode,
			humanize.Time(r.Finished),
			r.Duration().Round(time.Millisecond),
			outcome)
	}

	return nil
}
