package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/racelog/internal/engine"
	"github.com/roach88/racelog/internal/entries"
	"github.com/roach88/racelog/internal/model"
)

// EntryOptions holds flags shared by the entry subcommands.
type EntryOptions struct {
	*RootOptions
	Bib    string
	Point  string
	Run    int
	Status string
	At     string
}

// NewEntryCommand creates the entry command group.
func NewEntryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Record and edit timing entries",
	}
	cmd.AddCommand(newEntryAddCommand(rootOpts))
	cmd.AddCommand(newEntryListCommand(rootOpts))
	cmd.AddCommand(newEntryEditCommand(rootOpts))
	cmd.AddCommand(newEntryDeleteCommand(rootOpts))
	return cmd
}

func newEntryAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a timing entry",
		Long: `Record a Start or Finish entry for a bib. The time defaults to now.

Example:
  racelog entry add --bib 42 --point S
  racelog entry add --bib 42 --point F --run 2 --status dnf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := opts.formatter(cmd)
			in, err := opts.input()
			if err != nil {
				return out.Fail(ExitCommandError, CodeBadInput, "invalid entry", err)
			}
			return opts.withSession(cmd.Context(), func(s *session) error {
				e, ok := s.engine.AddEntry(in)
				if !ok {
					return out.Fail(ExitFailure, CodeRejected, "entry rejected", nil)
				}
				return out.Success(e, func(w io.Writer) {
					fmt.Fprintf(w, "Recorded %s: bib %s %s run %d at %s\n",
						e.ID, e.Bib, e.Point, e.Run, e.Timestamp.Format(time.RFC3339))
				})
			})
		},
	}
	opts.flags(cmd)
	_ = cmd.MarkFlagRequired("bib")
	return cmd
}

func newEntryListCommand(rootOpts *RootOptions) *cobra.Command {
	var bib string
	var run int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List timing entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := rootOpts.formatter(cmd)
			return rootOpts.withSession(cmd.Context(), func(s *session) error {
				st := s.engine.State()
				list := st.Entries
				if bib != "" {
					list = engine.EntriesForBib(st, bib, run)
				}
				return out.Success(list, func(w io.Writer) { writeEntries(w, list) })
			})
		},
	}
	cmd.Flags().StringVar(&bib, "bib", "", "only entries for this bib")
	cmd.Flags().IntVar(&run, "run", 1, "run to filter on with --bib")
	return cmd
}

func newEntryEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a timing entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			p, err := opts.patch(cmd)
			if err != nil {
				return out.Fail(ExitCommandError, CodeBadInput, "invalid entry", err)
			}
			return opts.withSession(cmd.Context(), func(s *session) error {
				if !s.engine.UpdateEntry(args[0], p) {
					return out.Fail(ExitFailure, CodeNotFound, fmt.Sprintf("no entry %q", args[0]), nil)
				}
				return out.Success(map[string]string{"id": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Updated %s\n", args[0])
				})
			})
		},
	}
	opts.flags(cmd)
	return cmd
}

func newEntryDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete timing entries",
		Long: `Delete the listed entries, or every entry with --all.

Example:
  racelog entry delete 0190c3e2-...
  racelog entry delete --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			if all == (len(args) > 0) {
				return out.Fail(ExitCommandError, CodeBadInput, "give entry ids or --all, not both", nil)
			}
			return rootOpts.withSession(cmd.Context(), func(s *session) error {
				before := engine.EntryCount(s.engine.State())
				var ok bool
				switch {
				case all:
					ok = s.engine.ClearAll()
				case len(args) == 1:
					ok = s.engine.DeleteEntry(args[0])
				default:
					ok = s.engine.DeleteMultiple(args)
				}
				if !ok && !all {
					return out.Fail(ExitFailure, CodeNotFound, "no matching entries", nil)
				}
				n := before - engine.EntryCount(s.engine.State())
				return out.Success(map[string]int{"deleted": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted %d entries\n", n)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every entry")
	return cmd
}

func (o *EntryOptions) flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Bib, "bib", "", "bib number (1-3 digits)")
	cmd.Flags().StringVar(&o.Point, "point", "S", "timing point: S (start) or F (finish)")
	cmd.Flags().IntVar(&o.Run, "run", 1, "run number (1 or 2)")
	cmd.Flags().StringVar(&o.Status, "status", "ok", "ok, dns, dnf or dsq")
	cmd.Flags().StringVar(&o.At, "at", "", "timestamp (RFC 3339); default now")
}

func (o *EntryOptions) input() (engine.EntryInput, error) {
	in := engine.EntryInput{
		Bib:    strings.TrimSpace(o.Bib),
		Point:  model.Point(strings.ToUpper(o.Point)),
		Run:    o.Run,
		Status: model.Status(strings.ToLower(o.Status)),
	}
	if err := validateEntry(in.Bib, in.Point, in.Run, in.Status); err != nil {
		return engine.EntryInput{}, err
	}
	if o.At != "" {
		ts, err := time.Parse(time.RFC3339, o.At)
		if err != nil {
			return engine.EntryInput{}, fmt.Errorf("--at: %w", err)
		}
		in.Timestamp = ts
	}
	return in, nil
}

// patch builds a patch from the flags the user actually set.
func (o *EntryOptions) patch(cmd *cobra.Command) (entries.Patch, error) {
	var p entries.Patch
	f := cmd.Flags()
	if f.Changed("bib") {
		b := strings.TrimSpace(o.Bib)
		if err := validateBib(b); err != nil {
			return p, err
		}
		p.Bib = &b
	}
	if f.Changed("point") {
		pt := model.Point(strings.ToUpper(o.Point))
		if !pt.Valid() {
			return p, fmt.Errorf("point must be S or F, got %q", o.Point)
		}
		p.Point = &pt
	}
	if f.Changed("run") {
		if o.Run != 1 && o.Run != 2 {
			return p, fmt.Errorf("run must be 1 or 2, got %d", o.Run)
		}
		r := o.Run
		p.Run = &r
	}
	if f.Changed("status") {
		st := model.Status(strings.ToLower(o.Status))
		if !st.Valid() {
			return p, fmt.Errorf("status must be ok, dns, dnf or dsq, got %q", o.Status)
		}
		p.Status = &st
	}
	if f.Changed("at") {
		ts, err := time.Parse(time.RFC3339, o.At)
		if err != nil {
			return p, fmt.Errorf("--at: %w", err)
		}
		p.Timestamp = &ts
	}
	return p, nil
}

func validateEntry(bib string, p model.Point, run int, st model.Status) error {
	if err := validateBib(bib); err != nil {
		return err
	}
	if !p.Valid() {
		return fmt.Errorf("point must be S or F, got %q", p)
	}
	if !model.ValidRun(run) {
		return fmt.Errorf("run must be 1 or 2, got %d", run)
	}
	if !st.Valid() {
		return fmt.Errorf("status must be ok, dns, dnf or dsq, got %q", st)
	}
	return nil
}

func validateBib(bib string) error {
	if !model.ValidBib(bib) {
		return fmt.Errorf("bib must be 1-3 digits, got %q", bib)
	}
	return nil
}

func writeEntries(w io.Writer, list []model.Entry) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No entries.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBIB\tPOINT\tRUN\tTIME\tSTATUS\tDEVICE")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.ID, e.Bib, e.Point, e.Run, e.Timestamp.Format(time.RFC3339), e.Status, e.DeviceName)
	}
	tw.Flush()
}
