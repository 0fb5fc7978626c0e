package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"medialib/client/internal/app"
	"medialib/client/internal/config"
	"medialib/client/internal/notify"
	"medialib/client/internal/session"
	"medialib/client/internal/workflow"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "medialib",
		Usage: "Multimedia library client",
		Commands: []*cli.Command{
			loginCommand(),
			registerCommand(),
			logoutCommand(),
			whoamiCommand(),
			catalogCommand(),
			suggestCommand(),
			categoryCommand(),
			themeCommand(),
			contentCommand(),
			exportCommand(),
			searchCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.Run(ctx, args); err != nil {
		if reported(err) {
			stop()
			os.Exit(1)
		}
		log.Fatal(err)
	}
}

// reported tells whether err was already shown through the notifier.
func reported(err error) bool {
	var (
		wfErr   *workflow.Error
		authErr *session.AuthError
		domErr  *app.DomainError
	)
	return errors.As(err, &wfErr) || errors.As(err, &authErr) || errors.As(err, &domErr)
}

type appAction func(ctx context.Context, c *cli.Command, a *app.App) error

// withApp builds the app for one command and closes it afterwards.
func withApp(fn appAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		a, err := app.New(config.Load(), notify.NewWriter(os.Stderr))
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return fn(ctx, c, a)
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and store the session token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Usage: "prompted for when omitted"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			password, err := passwordFrom(c)
			if err != nil {
				return err
			}
			s, err := a.Login(ctx, c.String("email"), password)
			if err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", s.Username)
			return nil
		}),
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and sign in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Usage: "prompted for when omitted"},
			&cli.StringFlag{Name: "role", Value: "reader", Usage: "reader or creator"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			password, err := passwordFrom(c)
			if err != nil {
				return err
			}
			s, err := a.Register(ctx, session.Profile{
				Username: c.String("username"),
				Email:    c.String("email"),
				Password: password,
				Role:     c.String("role"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("registered as %s\n", s.Username)
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session token",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
			return a.Logout(ctx)
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the current user and what they may do",
		Flags: []cli.Flag{jsonFlag()},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			s, ok := a.Session.Current(ctx)
			caps := a.Capabilities(ctx)
			if c.Bool("json") {
				out := map[string]any{"authenticated": ok, "capabilities": caps}
				if ok {
					out["username"] = s.Username
					out["email"] = s.Email
					out["roles"] = s.Roles
					out["expiresAt"] = s.ExpiresAt
				}
				return printJSON(out)
			}
			printSession(s, ok, caps)
			return nil
		}),
	}
}
