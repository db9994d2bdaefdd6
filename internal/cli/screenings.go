package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/filmrow/marquee/internal/store"
)

// ScreeningsOptions holds flags for the screenings command.
type ScreeningsOptions struct {
	*RootOptions
	Database string
	Source   string
	Cinema   string
	Active   bool
	From     string
	To       string
	Limit    uint64
}

// NewScreeningsCommand creates the screenings command: a live-table view for
// operators.
func NewScreeningsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScreeningsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "screenings",
		Short: "List live screenings",
		Long: `List screenings from the live table, joined with film and cinema.

Examples:
  marquee screenings --db marquee.db --active
  marquee screenings --db marquee.db --source viff --from 2025-01-01T00:00:00Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScreenings(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "filter to one source")
	cmd.Flags().StringVar(&opts.Cinema, "cinema", "", "filter to one cinema name")
	cmd.Flags().BoolVar(&opts.Active, "active", false, "only active screenings")
	cmd.Flags().StringVar(&opts.From, "from", "", "start of time window (RFC 3339)")
	cmd.Flags().StringVar(&opts.To, "to", "", "end of time window (RFC 3339)")
	cmd.Flags().Uint64Var(&opts.Limit, "limit", 100, "maximum rows to list")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runScreenings(opts *ScreeningsOptions, cmd *cobra.Command) error {
	filter := store.ScreeningFilter{
		Source:     opts.Source,
		CinemaName: opts.Cinema,
		ActiveOnly: opts.Active,
		Limit:      opts.Limit,
	}

	if opts.From != "" {
		t, err := time.Parse(time.RFC3339, opts.From)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --from", err)
		}
		filter.From = &t
	}
	if opts.To != "" {
		t, err := time.Parse(time.RFC3339, opts.To)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --to", err)
		}
		filter.To = &t
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	views, err := st.QueryScreenings(cmd.Context(), filter)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to query screenings", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(views)
	}

	if len(views) == 0 {
		return out.Success("no screenings match")
	}

	var b strings.Builder
	for _, v := range views {
		status := "active"
		if !v.IsActive {
			status = "inactive"
		}
		fmt.Fprintf(&b, "%s  %-28s %-24s %-10s %s\n",
			v.StartAtUTC.Format("2006-01-02 15:04"), truncate(v.FilmTitle, 28),
			truncate(v.CinemaName, 24), v.Source, status)
	}
	return out.Success(strings.TrimRight(b.String(), "\n"))
}

// truncate shortens s to n runes, never splitting a multibyte character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
