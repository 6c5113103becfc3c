package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/form"
)

func newReasonsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reasons [LEVEL1_ID [LEVEL2_ID]]",
		Short: "List reason codes of one taxonomy level",
		Long: `With no arguments, lists the level-1 reasons. Given a level-1 id,
lists its level-2 reasons; given both ids, lists the level-3 reasons.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := opts.client()
			var (
				nodes []domain.ReasonNode
				err   error
			)
			switch len(args) {
			case 0:
				nodes, err = api.ListLevel1(cmd.Context())
			case 1:
				nodes, err = api.ListLevel2(cmd.Context(), args[0])
			default:
				nodes, err = api.ListLevel3(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(nodes) == 0 {
				fmt.Fprintln(out, "No reasons.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, n := range nodes {
				fmt.Fprintf(tw, "%s\t%s\n", n.ID, n.Name)
			}
			return tw.Flush()
		},
	}
}

func newHistoryCommand(opts *options) *cobra.Command {
	var month, year int
	cmd := &cobra.Command{
		Use:   "history CONTRACT_ID",
		Short: "Show a contract's submissions for one month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := opts.location()
			if err != nil {
				return err
			}
			records, notice, err := opts.client().History(cmd.Context(), args[0], month, year)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if notice != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), notice)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No submissions.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tSTAFF\tREASONS\tAPPOINTMENT\tLOCK\tNOTE")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.CreatedDate.In(loc).Format("02/01/2006 15:04"),
					staffLabel(r),
					joinReasons(r),
					formatDate(r.AppointmentDate),
					lockLabel(r),
					r.Note,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&month, "month", 0, "Month (1-12), default current")
	cmd.Flags().IntVar(&year, "year", 0, "Year, default current")
	return cmd
}

type submitFlags struct {
	level1, level2, level3 string
	note                   string
	appointmentDate        string
	appointmentTime        string
	lockOption             string
	lockDate               string
	lockStatus             string
	role                   string
}

func newSubmitCommand(opts *options) *cobra.Command {
	f := &submitFlags{}
	cmd := &cobra.Command{
		Use:   "submit CONTRACT_ID",
		Short: "Record a non-payment reason for a contract",
		Long: `Fills the non-payment reason form the way the agent screen does:
each reason level is selected in turn and its children fetched, the form
rules run locally, and the draft is submitted to the service. Field errors
from either side are printed one per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.account == "" {
				return fmt.Errorf("--account is required")
			}
			loc, err := opts.location()
			if err != nil {
				return err
			}
			user := &domain.ActiveUser{Account: opts.account, Role: domain.Role(f.role)}
			now := func() time.Time { return time.Now().In(loc) }

			st := form.New(opts.client(), args[0], user, now, opts.logger(cmd.ErrOrStderr()))
			return runSubmit(cmd.Context(), st, opts.client(), f, loc, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.level1, "level1", "", "Level-1 reason id")
	fl.StringVar(&f.level2, "level2", "", "Level-2 reason id")
	fl.StringVar(&f.level3, "level3", "", "Level-3 reason id, when the branch has one")
	fl.StringVar(&f.note, "note", "", "Note (up to 500 characters)")
	fl.StringVar(&f.appointmentDate, "appointment-date", "", "Payment appointment date YYYY-MM-DD, default today")
	fl.StringVar(&f.appointmentTime, "appointment-time", "", "Payment appointment time HH:mm, default 09:00")
	fl.StringVar(&f.lockOption, "lock-option", string(domain.LockNone), "none, schedule or cancel")
	fl.StringVar(&f.lockDate, "lock-date", "", "Scheduled lock date YYYY-MM-DD")
	fl.StringVar(&f.lockStatus, "lock-status", "", "maintain or temporary")
	fl.StringVar(&f.role, "role", string(domain.RoleDebtCollector), "Staff role used for local checks")
	return cmd
}

func runSubmit(ctx context.Context, st *form.State, sub form.Submitter, f *submitFlags, loc *time.Location, out, errOut io.Writer) error {
	if err := st.LoadLevel1(ctx); err != nil {
		printNotices(errOut, st.TakeNotices())
		return err
	}
	if f.level1 != "" {
		if err := <-st.SelectLevel1(ctx, f.level1); err != nil {
			printNotices(errOut, st.TakeNotices())
			return err
		}
	}
	if f.level2 != "" {
		if err := <-st.SelectLevel2(ctx, f.level2); err != nil {
			printNotices(errOut, st.TakeNotices())
			return err
		}
	}
	if f.level3 != "" {
		st.SelectLevel3(f.level3)
	}
	st.SetNote(f.note)

	if f.appointmentDate != "" || f.appointmentTime != "" {
		date := st.Snapshot().Draft.AppointmentDate
		if f.appointmentDate != "" {
			d, err := domain.ParseDate(f.appointmentDate, loc)
			if err != nil {
				return fmt.Errorf("invalid --appointment-date: %w", err)
			}
			date = d
		}
		st.SetAppointment(date, f.appointmentTime)
	}

	st.SetLockOption(domain.LockOption(f.lockOption))
	if f.lockDate != "" {
		d, err := domain.ParseDate(f.lockDate, loc)
		if err != nil {
			return fmt.Errorf("invalid --lock-date: %w", err)
		}
		st.SetLockDate(d)
	}
	if f.lockStatus != "" {
		st.SetLockStatus(domain.LockStatus(f.lockStatus))
	}

	ack, err := st.Submit(ctx, sub)
	if err != nil {
		snap := st.Snapshot()
		for _, e := range snap.Errors {
			fmt.Fprintf(errOut, "  %s: %s\n", e.Field, e.Message)
		}
		printNotices(errOut, st.TakeNotices())
		return err
	}
	fmt.Fprintf(out, "%s (record %s)\n", ack.Message, ack.RecordID)
	return nil
}

func printNotices(w io.Writer, notices []string) {
	for _, n := range notices {
		fmt.Fprintln(w, n)
	}
}

func staffLabel(r domain.HistoryRecord) string {
	if r.StaffName == "" {
		return r.StaffAccount
	}
	return r.StaffName
}

func joinReasons(r domain.HistoryRecord) string {
	s := r.ReasonLevel1 + " / " + r.ReasonLevel2
	if r.ReasonLevel3 != "" {
		s += " / " + r.ReasonLevel3
	}
	return s
}

func lockLabel(r domain.HistoryRecord) string {
	switch {
	case r.LockDate != nil:
		return formatDate(r.LockDate) + " " + r.LockStatus
	case r.LockStatus != "":
		return r.LockStatus
	default:
		return "-"
	}
}
