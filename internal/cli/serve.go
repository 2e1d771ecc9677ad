package cli

import (
	"github.com/smallbiznis/rfidtrack/internal/migration"
	"github.com/smallbiznis/rfidtrack/internal/scheduler"
	"github.com/smallbiznis/rfidtrack/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// NewServeCommand runs the HTTP API until the process is signalled.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreOptions(),
				migration.Module,
				server.Module,
				scheduler.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
