package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/store"
	"github.com/spf13/cobra"
)

func newCallsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Inspect archived calls",
	}

	cmd.AddCommand(newCallsListCmd())
	cmd.AddCommand(newCallsShowCmd())
	cmd.AddCommand(newCallsSearchCmd())
	cmd.AddCommand(newCallsDeleteCmd())
	return cmd
}

// openArchive opens the call archive named by the active config.
func openArchive() (*store.DB, *store.CallStore, error) {
	cfg := loadConfig()
	db, err := store.Open(paths.ArchivePath(&cfg), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	return db, store.NewCallStore(db), nil
}

func newCallsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived calls, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, calls, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := calls.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "no archived calls")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tMODE\tSTARTED\tDURATION\tENTRIES\tQUALIFIED")
			for _, r := range rows {
				session := r.SessionID
				if r.Fallback {
					session += " (local)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%v\n",
					session, r.Mode, r.StartedAt.Local().Format(time.DateTime),
					r.EndedAt.Sub(r.StartedAt).Round(time.Second), r.Entries, r.QualificationComplete)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of calls to list")
	return cmd
}

func newCallsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show an archived call's transcript and qualification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, calls, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			rec, err := calls.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	return cmd
}

func newCallsSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over archived transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, calls, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			hits, err := calls.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(out, "%s #%d [%s] %s\n", h.SessionID, h.Seq, h.Entry.Role, h.Entry.Content)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of matches")
	return cmd
}

func newCallsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Remove an archived call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, calls, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := calls.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func printRecord(w io.Writer, rec *domain.CallRecord) {
	fmt.Fprintf(w, "session:  %s", rec.SessionID)
	if rec.Fallback {
		fmt.Fprint(w, " (local)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "mode:     %s\n", rec.Mode)
	fmt.Fprintf(w, "started:  %s\n", rec.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "ended:    %s (%s)\n", rec.EndedAt.Local().Format(time.DateTime), rec.EndReason)
	fmt.Fprintf(w, "qualified: %s", formatQualification(rec.Qualification))
	if rec.QualificationComplete {
		fmt.Fprint(w, " (complete)")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	for _, e := range rec.Transcript {
		fmt.Fprintf(w, "%s [%s] %s\n", e.Timestamp.Local().Format(time.TimeOnly), e.Role, e.Content)
	}
}
