package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/spatialbridge/internal/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [scenario.yaml]",
	Short: "Play a scenario in a live terminal view",
	Long: `Play a scenario like 'run', rendering frame, query and IMU counters
in a live view instead of printing each completion. Press q to stop.

Requires an interactive terminal; use 'run' otherwise.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: bindRunFlags,
	RunE:    runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	addRunFlags(monitorCmd.Flags())
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("monitor needs an interactive terminal; use 'spatialbridge run' instead")
	}

	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	title := "spatialbridge: " + s.scenario.Name
	if s.scenario.Name == "" {
		title = "spatialbridge: " + s.path
	}
	program := tea.NewProgram(monitor.New(title, cancel), tea.WithAltScreen(), tea.WithContext(ctx))
	detach := monitor.Attach(s.runner.Bus(), program.Send)
	defer detach()

	if err := s.runner.Start(); err != nil {
		s.logger.Warn("some features did not start", "error", err.Error())
	}

	done := make(chan error, 1)
	go func() {
		err := s.runner.Run(ctx, s.frames())
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		program.Send(monitor.DoneMsg{Err: err})
		done <- err
	}()

	_, progErr := program.Run()
	cancel()
	runErr := <-done
	stopErr := s.runner.Stop()

	if progErr != nil && !errors.Is(progErr, tea.ErrProgramKilled) {
		return progErr
	}
	if runErr != nil {
		return runErr
	}
	return stopErr
}
