package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/racelog/internal/engine"
	"github.com/roach88/racelog/internal/persistence"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write entries and faults as a versioned JSON backup",
		Long: `Write this device's entries and faults as a JSON document tagged with
the schema version, to stdout or a file.

Example:
  racelog export -o backup.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := rootOpts.formatter(cmd)
			return rootOpts.withSession(cmd.Context(), func(s *session) error {
				data, err := s.engine.Export()
				if err != nil {
					return out.Fail(ExitCommandError, CodeStorage, "failed to export", err)
				}
				if output == "" {
					_, err := cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return out.Fail(ExitCommandError, CodeBadInput, "failed to write export", err)
				}
				st := s.engine.State()
				return out.Success(map[string]any{
					"path":    output,
					"entries": engine.EntryCount(st),
					"faults":  engine.FaultCount(st),
				}, func(w io.Writer) {
					fmt.Fprintf(w, "Exported %d entries and %d faults to %s\n",
						engine.EntryCount(st), engine.FaultCount(st), output)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge an export document into local state",
		Long: `Merge an export document. Documents from older versions, including
the bare entry arrays of version 1, are upgraded on the way in. A
document from a newer version is refused and nothing changes.

Example:
  racelog import backup.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			data, err := os.ReadFile(args[0])
			if err != nil {
				return out.Fail(ExitCommandError, CodeBadInput, "failed to read import file", err)
			}
			return rootOpts.withSession(cmd.Context(), func(s *session) error {
				res, err := s.engine.Import(data)
				switch {
				case persistence.IsImportError(err, persistence.ImportUnsupportedVersion):
					return out.Fail(ExitFailure, CodeUnsupported, "export is from a newer version", err)
				case err != nil:
					return out.Fail(ExitCommandError, CodeBadInput, "malformed export", err)
				}
				return out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "Imported v%d document: %d entries added, %d faults added, %d faults updated\n",
						res.Version, res.Entries.Added, res.Faults.Added, res.Faults.Updated)
					if n := res.Entries.Invalid + res.Faults.Invalid; n > 0 {
						fmt.Fprintf(w, "Skipped %d invalid records\n", n)
					}
				})
			})
		},
	}
}
