package commands

import (
	"bufio"
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/jobwatch/internal/app/login"
	"github.com/slok/jobwatch/internal/app/logout"
	"github.com/slok/jobwatch/internal/printer"
)

type LoginCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	token string
}

// NewLoginCommand returns the login command.
func NewLoginCommand(rootCmd *RootCommand, app *kingpin.Application) *LoginCommand {
	c := &LoginCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("login", "Store the access token used with the analysis service.")
	c.Cmd.Flag("token", "Access token, read from stdin when missing.").Envar("JOBWATCH_TOKEN").StringVar(&c.token)

	return c
}

func (c LoginCommand) Name() string { return c.Cmd.FullCommand() }

func (c LoginCommand) Run(ctx context.Context) error {
	token := c.token
	if token == "" {
		fmt.Fprint(c.rootCmd.Stderr, "Token: ")
		sc := bufio.NewScanner(c.rootCmd.Stdin)
		if sc.Scan() {
			token = sc.Text()
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("could not read token: %w", err)
		}
	}

	st, err := c.rootCmd.openLocalState(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := login.NewService(login.ServiceConfig{
		Session: st.session,
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	auth, err := svc.Run(ctx, login.Request{Token: token})
	if err != nil {
		return err
	}

	return printer.NewTablePrinter(c.rootCmd.Stdout).PrintAuthState(*auth)
}

type LogoutCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewLogoutCommand returns the logout command.
func NewLogoutCommand(rootCmd *RootCommand, app *kingpin.Application) *LogoutCommand {
	c := &LogoutCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("logout", "Remove the stored access token.")
	return c
}

func (c LogoutCommand) Name() string { return c.Cmd.FullCommand() }

func (c LogoutCommand) Run(ctx context.Context) error {
	st, err := c.rootCmd.openLocalState(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := logout.NewService(logout.ServiceConfig{
		Session: st.session,
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	loggedOut, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	msg := "Logged out."
	if !loggedOut {
		msg = "Not logged in."
	}
	return printer.NewTablePrinter(c.rootCmd.Stdout).PrintMessage(msg)
}

type WhoamiCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewWhoamiCommand returns the whoami command.
func NewWhoamiCommand(rootCmd *RootCommand, app *kingpin.Application) *WhoamiCommand {
	c := &WhoamiCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("whoami", "Show the stored session.")
	c.Cmd.Flag("format", "Output format (table, json).").Default(printer.FormatTable).EnumVar(&c.format, printer.FormatTable, printer.FormatJSON)

	return c
}

func (c WhoamiCommand) Name() string { return c.Cmd.FullCommand() }

func (c WhoamiCommand) Run(ctx context.Context) error {
	st, err := c.rootCmd.openLocalState(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	return printer.New(c.format, c.rootCmd.Stdout).PrintAuthState(st.session.GetAuthState())
}
