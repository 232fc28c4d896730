package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/jobwatch/internal/app/cancel"
	"github.com/slok/jobwatch/internal/printer"
)

type CancelCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID      string
	serviceType string
	fakeOpts    fakeServiceOptions
}

// NewCancelCommand returns the cancel command.
func NewCancelCommand(rootCmd *RootCommand, app *kingpin.Application) *CancelCommand {
	c := &CancelCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("cancel", "Cancel an analysis task.")
	c.Cmd.Arg("task-id", "Analysis task ID.").Required().StringVar(&c.taskID)
	registerServiceFlags(c.Cmd, &c.serviceType, &c.fakeOpts)

	return c
}

func (c CancelCommand) Name() string { return c.Cmd.FullCommand() }

func (c CancelCommand) Run(ctx context.Context) error {
	st, err := c.rootCmd.openLocalState(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	analysisSvc, err := c.rootCmd.newAnalysisService(st, c.serviceType, c.fakeOpts)
	if err != nil {
		return err
	}

	svc, err := cancel.NewService(cancel.ServiceConfig{
		Analysis: analysisSvc,
		Logger:   c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Run(ctx, cancel.Request{TaskID: c.taskID}); err != nil {
		return fmt.Errorf("could not cancel task: %w", err)
	}

	return printer.NewTablePrinter(c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Analysis task %s cancelled", c.taskID))
}
