// Package promctl implements the administration CLI. Commands that work on
// the store open the same stack as the server; login and status talk to a
// running server over gRPC.
package promctl

import (
	"context"
	"io"

	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server"
	"github.com/mdhender/promisance/internal/server/config"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type options struct {
	configFile string
	dsn        string
	addr       string
}

// Test seams.
var (
	newStack = server.NewStack
	dial     = func(addr string) (grpc.ClientConnInterface, io.Closer, error) {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, err
		}
		return conn, conn, nil
	}
)

func NewRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "promctl",
		Short:         "Promisance administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configFile, "config", "c", "", "Path to JSON server config file")
	root.PersistentFlags().StringVarP(&o.dsn, "dsn", "d", "", "Database DSN, overrides the config file")
	root.PersistentFlags().StringVarP(&o.addr, "addr", "a", "localhost:50051", "Game server address")

	root.AddCommand(
		newUserCmd(o),
		newEmpireCmd(o),
		newTurnsCmd(o),
		newLoginCmd(o),
		newStatusCmd(o),
		newArchiveCmd(),
	)
	return root
}

// loadConfig builds the server config from the persistent flags.
func (o *options) loadConfig() (*config.Config, error) {
	var args []string
	if o.configFile != "" {
		args = append(args, "-c", o.configFile)
	}
	if o.dsn != "" {
		args = append(args, "-d", o.dsn)
	}
	return config.LoadConfig(args)
}

// withStack opens the store for the duration of fn. Logs go to stderr so
// they never mix with the tables on stdout.
func (o *options) withStack(cmd *cobra.Command, fn func(ctx context.Context, s *server.Stack) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.NewJSONLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	s, err := newStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
