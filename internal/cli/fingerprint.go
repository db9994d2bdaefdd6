package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/filmrow/marquee/internal/screening"
)

// fingerprintInput is the JSON shape accepted on stdin: the comparison
// fields of one screening record.
type fingerprintInput struct {
	FilmID     int64   `json:"film_id"`
	CinemaID   int64   `json:"cinema_id"`
	StartAtUTC string  `json:"start_at_utc"`
	EndAtUTC   string  `json:"end_at_utc"`
	RuntimeMin *int64  `json:"runtime_min"`
	TZ         string  `json:"tz"`
	Source     string  `json:"source"`
	SourceUID  string  `json:"source_uid"`
	SourceURL  string  `json:"source_url"`
	Notes      *string `json:"notes"`
	RawDate    *string `json:"raw_date"`
	RawTime    *string `json:"raw_time"`
}

// NewFingerprintCommand creates the fingerprint command: a debugging aid
// that computes the content hash of a record supplied as JSON on stdin.
func NewFingerprintCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Compute the content hash of a screening record",
		Long: `Read one screening record as JSON from stdin and print its content hash.

Useful for checking why a merge did or did not count a row as updated.

Example:
  echo '{"film_id":1,"cinema_id":2,"start_at_utc":"2025-01-01T20:00:00Z",...}' | marquee fingerprint`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(rootOpts, cmd)
		},
	}
	return cmd
}

func runFingerprint(rootOpts *RootOptions, cmd *cobra.Command) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read stdin", err)
	}

	var in fingerprintInput
	if err := json.Unmarshal(data, &in); err != nil {
		return WrapExitError(ExitCommandError, "invalid record JSON", err)
	}

	rec := screening.Record{
		FilmID:     in.FilmID,
		CinemaID:   in.CinemaID,
		RuntimeMin: in.RuntimeMin,
		TZ:         in.TZ,
		Source:     in.Source,
		SourceUID:  in.SourceUID,
		SourceURL:  in.SourceURL,
		Notes:      in.Notes,
		RawDate:    in.RawDate,
		RawTime:    in.RawTime,
	}
	if in.StartAtUTC != "" {
		if rec.StartAtUTC, err = time.Parse(time.RFC3339, in.StartAtUTC); err != nil {
			return WrapExitError(ExitCommandError, "invalid start_at_utc", err)
		}
	}
	if in.EndAtUTC != "" {
		if rec.EndAtUTC, err = time.Parse(time.RFC3339, in.EndAtUTC); err != nil {
			return WrapExitError(ExitCommandError, "invalid end_at_utc", err)
		}
	}

	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	if rootOpts.Format == "json" {
		return out.Success(map[string]string{"content_hash": screening.Fingerprint(rec)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), screening.Fingerprint(rec))
	return nil
}
