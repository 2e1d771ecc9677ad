package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smallbiznis/rfidtrack/internal/audit"
	"github.com/smallbiznis/rfidtrack/internal/export"
	"github.com/smallbiznis/rfidtrack/internal/labelprint"
	"github.com/smallbiznis/rfidtrack/internal/ratelimit"
	"github.com/smallbiznis/rfidtrack/internal/tag"
	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

type exportOptions struct {
	Since   string
	Output  string
	Archive bool
}

// NewExportCommand writes the changed-tags workbook to a file or archives it
// to the configured bucket.
func NewExportCommand() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tags changed since a point in time",
		Long: `Builds the changed-tags workbook. Without --archive the workbook is
written to --output (default: the generated filename in the current
directory). With --archive it is uploaded to EXPORT_BUCKET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := parseSinceFlag(opts.Since)
			if err != nil {
				return err
			}
			if opts.Archive && opts.Output != "" {
				return errors.New("--output and --archive are mutually exclusive")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var svc *export.Service
			return runOnce(ctx, exportOptionsModules(), func(ctx context.Context) error {
				if opts.Archive {
					res, err := svc.Archive(ctx, since)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "archived %d row(s) to %s\n", res.Rows, res.Location)
					return nil
				}

				wb, err := svc.ChangedTags(ctx, since)
				if err != nil {
					return err
				}
				path := opts.Output
				if path == "" {
					path = wb.Filename
				}
				if err := os.WriteFile(filepath.Clean(path), wb.Body, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d row(s) to %s\n", wb.Rows, path)
				return nil
			}, &svc)
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "row version token, RFC3339 time or date (default: everything)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "workbook path")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "upload to the export bucket instead of writing a file")

	return cmd
}

func exportOptionsModules() fx.Option {
	return fx.Options(
		coreOptions(),
		labelprint.Module,
		audit.Module,
		tag.Module,
		ratelimit.Module,
		export.Module,
	)
}

func parseSinceFlag(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "0" {
		return time.Unix(0, 0).UTC(), nil
	}
	if parsed, err := tagdomain.ParseToken(trimmed); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse("2006-01-02", trimmed); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid --since %q", value)
}
