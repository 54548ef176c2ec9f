package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/racelog/internal/merge"
)

// MergeResult is the merge command's output.
type MergeResult struct {
	Kind    string       `json:"kind"`
	Merge   merge.Result `json:"merge"`
	Removed int          `json:"removed"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <entries|faults> <batch.json>",
		Short: "Merge a batch of records from other devices",
		Long: `Merge a batch of records fetched from the sync backend. The batch is
a JSON object:

  {"records": [...], "deletedIds": ["id:deviceId", "id"]}

Records from this device and tombstoned records are skipped, and local
records matching a tombstone are removed. Invalid records are counted
and skipped.

Example:
  racelog merge entries batch.json
  racelog merge faults faults.json --format json`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"entries", "faults"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			kind := args[0]
			if kind != "entries" && kind != "faults" {
				return out.Fail(ExitCommandError, CodeBadInput,
					fmt.Sprintf("unknown record kind %q: want entries or faults", kind), nil)
			}
			b, err := readBatch(args[1])
			if err != nil {
				return out.Fail(ExitCommandError, CodeBadInput, "failed to read batch", err)
			}
			return rootOpts.withSession(cmd.Context(), func(s *session) error {
				res := MergeResult{Kind: kind}
				if kind == "entries" {
					res.Merge = s.engine.MergeCloudEntries(b)
					res.Removed = s.engine.RemoveDeletedCloudEntries(b.Tombstones)
				} else {
					res.Merge = s.engine.MergeFaultsFromCloud(b)
					res.Removed = s.engine.RemoveDeletedCloudFaults(b.Tombstones)
				}
				return out.Success(res, func(w io.Writer) { writeMerge(w, res) })
			})
		},
	}
	return cmd
}

func readBatch(path string) (merge.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return merge.Batch{}, err
	}
	var b merge.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return merge.Batch{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return b, nil
}

func writeMerge(w io.Writer, r MergeResult) {
	m := r.Merge
	fmt.Fprintf(w, "Merged %s: %d added, %d updated, %d unchanged\n", r.Kind, m.Added, m.Updated, m.Unchanged)
	if skipped := m.Echoes + m.Tombstoned + m.Invalid; skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d own, %d deleted, %d invalid\n", m.Echoes, m.Tombstoned, m.Invalid)
	}
	if r.Removed > 0 {
		fmt.Fprintf(w, "Removed %d local %s deleted elsewhere\n", r.Removed, r.Kind)
	}
}
