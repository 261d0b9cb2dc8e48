package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"staged/internal/stage"
	"staged/internal/ui"
)

type replayOutcome struct {
	reports []replayReport
	err     error
}

func replayWithUI(ctx context.Context, engine *stage.Engine, paths []string, jobs, repeat int) ([]replayReport, error) {
	events := make(chan ui.Event, 256)
	outcomeCh := make(chan replayOutcome, 1)

	go func() {
		reports, err := replayAll(ctx, engine, paths, jobs, repeat, ui.ChannelSink{Ch: events})
		outcomeCh <- replayOutcome{reports: reports, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("replay", paths, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.reports, uiErr
	}
	return outcome.reports, outcome.err
}
