package cli

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rfidtrack/internal/clock"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/smallbiznis/rfidtrack/internal/observability"
	"github.com/smallbiznis/rfidtrack/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const oneShotTimeout = 2 * time.Minute

// NewRootCommand creates the rfidtrack command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rfidtrack",
		Short: "RFID inventory tag service",
		Long: `Tracks the current state of RFID inventory tags, records every
mutation in the change log and keeps the verification audit ledger.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewExportCommand())

	return cmd
}

// NewSnowflakeNode provides the id generator shared by the change log and
// the audit ledger.
func NewSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func coreOptions() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(NewSnowflakeNode),
		db.Module,
		clock.Module,
	)
}

// runOnce starts a short-lived app, runs fn and stops the app again.
// targets are filled through fx.Populate before fn runs.
func runOnce(ctx context.Context, opts fx.Option, fn func(ctx context.Context) error, targets ...interface{}) error {
	app := fx.New(
		fx.NopLogger,
		opts,
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, oneShotTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx)
}
