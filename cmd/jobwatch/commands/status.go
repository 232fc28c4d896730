package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/jobwatch/internal/app/status"
	"github.com/slok/jobwatch/internal/printer"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID      string
	format      string
	serviceType string
	fakeOpts    fakeServiceOptions
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Get the status of an analysis task.")
	c.Cmd.Arg("task-id", "Analysis task ID.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("format", "Output format (table, json).").Default(printer.FormatTable).EnumVar(&c.format, printer.FormatTable, printer.FormatJSON)
	registerServiceFlags(c.Cmd, &c.serviceType, &c.fakeOpts)

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	st, err := c.rootCmd.openLocalState(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	analysisSvc, err := c.rootCmd.newAnalysisService(st, c.serviceType, c.fakeOpts)
	if err != nil {
		return err
	}

	svc, err := status.NewService(status.ServiceConfig{
		Analysis: analysisSvc,
		Logger:   c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Run(ctx, status.Request{TaskID: c.taskID})
	if err != nil {
		return fmt.Errorf("could not get task status: %w", err)
	}

	if err := printer.New(c.format, c.rootCmd.Stdout).PrintTask(*task); err != nil {
		return fmt.Errorf("could not print status: %w", err)
	}

	return nil
}
