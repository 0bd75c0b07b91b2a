package promctl

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	gs "github.com/mdhender/promisance/internal/server/grpc"
	"github.com/spf13/cobra"
)

// withClient connects to the game server for the duration of fn.
func (o *options) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *gs.Client) error) error {
	cc, closer, err := dial(o.addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", o.addr, err)
	}
	defer closer.Close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, gs.NewClient(cc))
}

func newLoginCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and show the empire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := getPassword(cmd.ErrOrStderr(), "Password")
			if err != nil {
				return err
			}
			return o.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				res, err := c.Login(ctx, args[0], password)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				color.New(color.FgGreen, color.Bold).Fprintf(out, "logged in, session expires %v\n", res["expires_at"])
				fmt.Fprintf(out, "token: %s\n", c.Token())

				emp, err := c.Empire(ctx)
				if err != nil {
					return err
				}
				return printEmpire(out, mapRows(emp))
			})
		},
	}
}

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the round status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(ctx context.Context, c *gs.Client) error {
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				return printTable(cmd.OutOrStdout(), []string{"Field", "Value"}, mapRows(st))
			})
		},
	}
}
