package promctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/server"
	"github.com/mdhender/promisance/internal/server/archive"
	"github.com/spf13/cobra"
)

func newUserCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage accounts"}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := getPassword(cmd.ErrOrStderr(), "Password for "+args[0])
			if err != nil {
				return err
			}
			return o.withStack(cmd, func(ctx context.Context, s *server.Stack) error {
				u, err := s.Empires.CreateUser(ctx, args[0], password)
				if err != nil {
					return err
				}
				color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", u.ID, u.Username)
				return nil
			})
		},
	})
	return cmd
}

func newEmpireCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{Use: "empire", Short: "Manage empires"}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <username> <empire name>",
		Short: "Sign an existing account up for the running round",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withStack(cmd, func(ctx context.Context, s *server.Stack) error {
				id, err := s.Repos.Users(s.Handle).FindByName(ctx, args[0])
				if err != nil {
					return fmt.Errorf("user %q: %w", args[0], err)
				}
				e, err := s.Empires.CreateEmpire(ctx, id, args[1])
				if err != nil {
					return err
				}
				color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "created empire %d\n", e.ID)
				return printEmpire(cmd.OutOrStdout(), empireRows(e))
			})
		},
	})

	var limit int
	events := &cobra.Command{
		Use:   "events <empire id>",
		Short: "List the newest lifecycle events of an empire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("empire id: %w", err)
			}
			return o.withStack(cmd, func(ctx context.Context, s *server.Stack) error {
				evs, err := s.Repos.Events(s.Handle).ListForEmpire(ctx, id, limit)
				if err != nil {
					return err
				}
				return printEvents(cmd.OutOrStdout(), evs)
			})
		},
	}
	events.Flags().IntVarP(&limit, "limit", "n", 20, "Number of events")
	cmd.AddCommand(events)
	return cmd
}

func newTurnsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{Use: "turns", Short: "Turn scheduler"}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one scheduler pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withStack(cmd, func(ctx context.Context, s *server.Stack) error {
				rep, err := s.Engine.RunPass(ctx)
				if errors.Is(err, common.ErrStaleSchedule) {
					color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "another pass is running")
					return nil
				}
				if err != nil {
					return err
				}
				if rep == nil {
					color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "nothing due")
					return nil
				}
				if err := printReport(cmd.OutOrStdout(), rep); err != nil {
					return err
				}
				if !rep.OK() {
					return fmt.Errorf("%d empires failed", len(rep.Failures))
				}
				return nil
			})
		},
	})

	var limit int
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show the newest turn log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withStack(cmd, func(ctx context.Context, s *server.Stack) error {
				entries, err := s.Repos.TurnLog(s.Handle).Recent(ctx, limit)
				if err != nil {
					return err
				}
				return printTurnLog(cmd.OutOrStdout(), entries)
			})
		},
	}
	logCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	cmd.AddCommand(logCmd)
	return cmd
}

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "archive", Short: "Graveyard archive"}
	var digest string
	show := &cobra.Command{
		Use:   "show <file>",
		Short: "Show an archived empire downloaded from the bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			e, err := archive.Decode(data, digest)
			if err != nil {
				return err
			}
			return printEmpire(cmd.OutOrStdout(), empireRows(e))
		},
	}
	show.Flags().StringVar(&digest, "digest", "", "Expected blake3 digest (hex)")
	cmd.AddCommand(show)
	return cmd
}
