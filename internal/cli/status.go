package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/racelog/internal/engine"
	"github.com/roach88/racelog/internal/store"
)

// StatusResult is the status command's output.
type StatusResult struct {
	Database       string            `json:"database"`
	DeviceID       string            `json:"device_id"`
	DeviceName     string            `json:"device_name"`
	RaceID         string            `json:"race_id,omitempty"`
	SchemaVersion  int               `json:"schema_version"`
	Entries        int               `json:"entries"`
	Faults         int               `json:"faults"`
	PendingDeletes int               `json:"pending_deletions"`
	SyncQueue      int               `json:"sync_queue"`
	Used           int64             `json:"used_bytes"`
	Quota          int64             `json:"quota_bytes"`
	UsagePercent   float64           `json:"usage_percent"`
	Corrupt        []string          `json:"corrupt_slices,omitempty"`
	Slices         []store.SliceInfo `json:"slices"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored state and storage usage",
		Long: `Show what this device has recorded and how much of the storage quota
it uses. Slices that could not be read are listed; they were replaced
with defaults and are rewritten on the next change.

Example:
  racelog status --db race.db
  racelog status --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := rootOpts.formatter(cmd)
			return rootOpts.withSession(cmd.Context(), func(s *session) error {
				res, err := status(cmd, rootOpts, s)
				if err != nil {
					return out.Fail(ExitCommandError, CodeStorage, "failed to read status", err)
				}
				return out.Success(res, func(w io.Writer) { writeStatus(w, res) })
			})
		},
	}
}

func status(cmd *cobra.Command, o *RootOptions, s *session) (StatusResult, error) {
	ctx := cmd.Context()
	st := s.engine.State()

	usage, err := s.engine.Persister().ProbeQuota(ctx)
	if err != nil {
		return StatusResult{}, err
	}
	slices, err := s.store.List(ctx)
	if err != nil {
		return StatusResult{}, err
	}

	res := StatusResult{
		Database:       o.Config.Database,
		DeviceID:       st.DeviceID,
		DeviceName:     st.DeviceName,
		RaceID:         st.RaceID,
		SchemaVersion:  st.SchemaVersion,
		Entries:        engine.EntryCount(st),
		Faults:         engine.FaultCount(st),
		PendingDeletes: engine.PendingDeletionCount(st),
		SyncQueue:      len(st.SyncQueue),
		Used:           usage.Used,
		Quota:          usage.Quota,
		UsagePercent:   usage.Ratio * 100,
		Slices:         slices,
	}
	for _, sl := range s.engine.LoadReport().Corrupt {
		res.Corrupt = append(res.Corrupt, string(sl))
	}
	return res, nil
}

func writeStatus(w io.Writer, r StatusResult) {
	fmt.Fprintf(w, "Database:  %s\n", r.Database)
	fmt.Fprintf(w, "Device:    %s (%s)\n", r.DeviceName, r.DeviceID)
	if r.RaceID != "" {
		fmt.Fprintf(w, "Race:      %s\n", r.RaceID)
	}
	fmt.Fprintf(w, "Schema:    v%d\n", r.SchemaVersion)
	fmt.Fprintf(w, "Entries:   %d\n", r.Entries)
	fmt.Fprintf(w, "Faults:    %d (%d pending deletion)\n", r.Faults, r.PendingDeletes)
	fmt.Fprintf(w, "Queued:    %d\n", r.SyncQueue)
	if r.Quota > 0 {
		fmt.Fprintf(w, "Storage:   %d / %d bytes (%.1f%%)\n", r.Used, r.Quota, r.UsagePercent)
	} else {
		fmt.Fprintf(w, "Storage:   %d bytes\n", r.Used)
	}
	for _, c := range r.Corrupt {
		fmt.Fprintf(w, "Recovered: %s was unreadable and reset\n", c)
	}
	if len(r.Slices) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLICE\tBYTES\tUPDATED")
	for _, sl := range r.Slices {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", sl.Key, sl.Bytes, sl.UpdatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

