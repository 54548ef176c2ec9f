package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/racelog/internal/faults"
	"github.com/roach88/racelog/internal/model"
)

// FaultOptions holds flags shared by the fault subcommands.
type FaultOptions struct {
	*RootOptions
	Bib         string
	Run         int
	Gate        int
	Type        string
	Notes       string
	Description string
}

// NewFaultCommand creates the fault command group.
func NewFaultCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fault",
		Short: "Record gate faults and manage their deletion",
		Long: `Record gate faults, edit them with version history, and run the
two-step deletion workflow: a judge marks a fault, then the chief of
race approves or rejects the deletion.`,
	}
	cmd.AddCommand(newFaultAddCommand(rootOpts))
	cmd.AddCommand(newFaultListCommand(rootOpts))
	cmd.AddCommand(newFaultEditCommand(rootOpts))
	cmd.AddCommand(newFaultRestoreCommand(rootOpts))
	cmd.AddCommand(newFaultDecisionCommand(rootOpts, "mark", "Mark a fault for deletion"))
	cmd.AddCommand(newFaultDecisionCommand(rootOpts, "approve", "Approve a pending deletion"))
	cmd.AddCommand(newFaultDecisionCommand(rootOpts, "reject", "Reject a pending deletion"))
	return cmd
}

func newFaultAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FaultOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a gate fault",
		Long: `Record a fault for a bib at a gate. Types: MG (missed gate),
STR (straddling), BR (binding release).

Example:
  racelog fault add --bib 42 --gate 7 --type MG`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := opts.formatter(cmd)
			ft := model.FaultType(strings.ToUpper(opts.Type))
			bib := strings.TrimSpace(opts.Bib)
			if err := validateFault(bib, opts.Run, opts.Gate, ft); err != nil {
				return out.Fail(ExitCommandError, CodeBadInput, "invalid fault", err)
			}
			return opts.withSession(cmd.Context(), func(s *session) error {
				in := faults.Input{
					Bib:        bib,
					Run:        opts.Run,
					GateNumber: opts.Gate,
					FaultType:  ft,
					Notes:      opts.Notes,
				}
				if g := s.engine.State().GateAssignment; g != nil {
					in.GateRange = *g
				}
				if opts.Notes != "" {
					in.NotesSource = model.NoteSourceManual
				}
				f, ok := s.engine.AddFault(in)
				if !ok {
					return out.Fail(ExitFailure, CodeRejected, "fault rejected", nil)
				}
				return out.Success(f, func(w io.Writer) {
					fmt.Fprintf(w, "Recorded fault %s: bib %s gate %d %s\n", f.ID, f.Bib, f.GateNumber, f.FaultType)
				})
			})
		},
	}
	opts.flags(cmd)
	_ = cmd.MarkFlagRequired("bib")
	_ = cmd.MarkFlagRequired("gate")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newFaultListCommand(rootOpts *RootOptions) *cobra.Command {
	var pending bool
	var bib string
	var run int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List faults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := rootOpts.formatter(cmd)
			return rootOpts.withSession(cmd.Context(), func(s *session) error {
				list := s.engine.State().Faults
				switch {
				case pending:
					list = s.engine.PendingDeletions()
				case bib != "":
					list = s.engine.FaultsForBib(bib, run)
				}
				return out.Success(list, func(w io.Writer) { writeFaults(w, list) })
			})
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "only faults awaiting deletion approval")
	cmd.Flags().StringVar(&bib, "bib", "", "only faults for this bib")
	cmd.Flags().IntVar(&run, "run", 1, "run to filter on with --bib")
	return cmd
}

func newFaultEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FaultOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a fault, recording a new version",
		Long: `Edit a fault. Each edit adds a version to the fault's history; the
last 50 versions are kept. A fault pending deletion cannot be edited.

Example:
  racelog fault edit 0190c3e2-... --type STR --description "wrong code"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			p, err := opts.patch(cmd)
			if err != nil {
				return out.Fail(ExitCommandError, CodeBadInput, "invalid fault", err)
			}
			return opts.withSession(cmd.Context(), func(s *session) error {
				if !s.engine.UpdateFaultWithHistory(args[0], p, opts.Description) {
					return out.Fail(ExitFailure, CodeRejected,
						fmt.Sprintf("fault %q not found or pending deletion", args[0]), nil)
				}
				f, _ := faults.Find(s.engine.State().Faults, args[0])
				return out.Success(f, func(w io.Writer) {
					fmt.Fprintf(w, "Updated %s to version %d\n", f.ID, f.CurrentVersion)
				})
			})
		},
	}
	opts.flags(cmd)
	cmd.Flags().StringVar(&opts.Description, "description", "", "change description for the version history")
	return cmd
}

func newFaultRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id> <version>",
		Short: "Restore a fault to an earlier version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			version, err := strconv.Atoi(args[1])
			if err != nil {
				return out.Fail(ExitCommandError, CodeBadInput, "version must be a number", err)
			}
			return rootOpts.withSession(cmd.Context(), func(s *session) error {
				if !s.engine.RestoreFaultVersion(args[0], version) {
					return out.Fail(ExitFailure, CodeRejected,
						fmt.Sprintf("cannot restore %q to version %d", args[0], version), nil)
				}
				f, _ := faults.Find(s.engine.State().Faults, args[0])
				return out.Success(f, func(w io.Writer) {
					fmt.Fprintf(w, "Restored %s to version %d as version %d\n", f.ID, version, f.CurrentVersion)
				})
			})
		},
	}
}

// newFaultDecisionCommand builds mark, approve and reject, which share a
// shape: one fault id in, a refusal when the fault is in the wrong state.
func newFaultDecisionCommand(rootOpts *RootOptions, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			id := args[0]
			return rootOpts.withSession(cmd.Context(), func(s *session) error {
				var ok bool
				var data any = map[string]string{"id": id}
				switch verb {
				case "mark":
					ok = s.engine.MarkFaultForDeletion(id)
				case "approve":
					if f := s.engine.ApproveFaultDeletion(id); f != nil {
						ok, data = true, f
					}
				case "reject":
					ok = s.engine.RejectFaultDeletion(id)
				}
				if !ok {
					return out.Fail(ExitFailure, CodeRejected,
						fmt.Sprintf("cannot %s fault %q in its current state", verb, id), nil)
				}
				return out.Success(data, func(w io.Writer) {
					fmt.Fprintf(w, "%s: %s\n", pastTense(verb), id)
				})
			})
		},
	}
}

func pastTense(verb string) string {
	switch verb {
	case "mark":
		return "Marked for deletion"
	case "approve":
		return "Deletion approved"
	}
	return "Deletion rejected"
}

func (o *FaultOptions) flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Bib, "bib", "", "bib number (1-3 digits)")
	cmd.Flags().IntVar(&o.Run, "run", 1, "run number (1 or 2)")
	cmd.Flags().IntVar(&o.Gate, "gate", 0, "gate number")
	cmd.Flags().StringVar(&o.Type, "type", "", "fault type: MG, STR or BR")
	cmd.Flags().StringVar(&o.Notes, "notes", "", "free-text note")
}

func (o *FaultOptions) patch(cmd *cobra.Command) (faults.Patch, error) {
	var p faults.Patch
	f := cmd.Flags()
	if f.Changed("bib") {
		b := strings.TrimSpace(o.Bib)
		if err := validateBib(b); err != nil {
			return p, err
		}
		p.Bib = &b
	}
	if f.Changed("run") {
		if o.Run != 1 && o.Run != 2 {
			return p, fmt.Errorf("run must be 1 or 2, got %d", o.Run)
		}
		r := o.Run
		p.Run = &r
	}
	if f.Changed("gate") {
		if o.Gate < 0 {
			return p, fmt.Errorf("gate must not be negative, got %d", o.Gate)
		}
		g := o.Gate
		p.GateNumber = &g
	}
	if f.Changed("type") {
		ft := model.FaultType(strings.ToUpper(o.Type))
		if !ft.Valid() {
			return p, fmt.Errorf("type must be MG, STR or BR, got %q", o.Type)
		}
		p.FaultType = &ft
	}
	if f.Changed("notes") {
		n, src := o.Notes, model.NoteSourceManual
		now := time.Now()
		p.Notes, p.NotesSource, p.NotesTimestamp = &n, &src, &now
	}
	return p, nil
}

func validateFault(bib string, run, gate int, ft model.FaultType) error {
	if err := validateBib(bib); err != nil {
		return err
	}
	if !model.ValidRun(run) {
		return fmt.Errorf("run must be 1 or 2, got %d", run)
	}
	if gate < 0 {
		return fmt.Errorf("gate must not be negative, got %d", gate)
	}
	if !ft.Valid() {
		return fmt.Errorf("type must be MG, STR or BR, got %q", ft)
	}
	return nil
}

func writeFaults(w io.Writer, list []model.Fault) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No faults.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBIB\tRUN\tGATE\tTYPE\tVERSION\tSTATE\tDEVICE")
	for _, f := range list {
		state := "active"
		if f.PendingDeletion() {
			state = "pending deletion"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%d\t%s\t%s\n",
			f.ID, f.Bib, f.Run, f.GateNumber, f.FaultType, f.CurrentVersion, state, f.DeviceName)
	}
	tw.Flush()
}
