package cli

import (
	"context"
	"fmt"

	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/smallbiznis/rfidtrack/internal/migration"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// NewMigrateCommand manages the schema outside of serve.
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, conn *gorm.DB, cfg config.Config) error {
				if err := migration.Up(conn, cfg.DBType); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			return withStore(cmd.Context(), func(ctx context.Context, conn *gorm.DB, cfg config.Config) error {
				if err := migration.Down(conn, cfg.DBType, steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, conn *gorm.DB, cfg config.Config) error {
				version, dirty, ok, err := migration.Version(conn, cfg.DBType)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatVersion(version, dirty, ok))
				return nil
			})
		},
	})

	return cmd
}

func withStore(ctx context.Context, fn func(ctx context.Context, conn *gorm.DB, cfg config.Config) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		conn *gorm.DB
		cfg  config.Config
	)
	return runOnce(ctx, coreOptions(), func(ctx context.Context) error {
		return fn(ctx, conn, cfg)
	}, &conn, &cfg)
}

func formatVersion(version uint, dirty, ok bool) string {
	switch {
	case !ok:
		return "no migrations applied"
	case dirty:
		return fmt.Sprintf("version %d (dirty)", version)
	default:
		return fmt.Sprintf("version %d", version)
	}
}
