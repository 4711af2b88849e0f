package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

var (
	channelID  int
	outputFile string
	startTime  string
	endTime    string
	eventType  string
	streamType int
	maxResults int
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Short:   "Save a JPEG snapshot from a channel",
	Example: `  hikctl snapshot --channel 2 --output gate.jpg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		img, err := client.GetSnapshot(ctx, channelID)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if err := os.WriteFile(outputFile, img, 0644); err != nil {
			return err
		}
		fmt.Printf("Snapshot saved to %s (%d bytes)\n", outputFile, len(img))
		return nil
	},
}

// timeRange parses --start/--end; the default is the last 24 hours.
func timeRange() (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if endTime != "" {
		if end = adapters.ParseVendorTime(endTime); end.IsZero() {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q", endTime)
		}
	}
	start := end.Add(-24 * time.Hour)
	if startTime != "" {
		if start = adapters.ParseVendorTime(startTime); start.IsZero() {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q", startTime)
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("--start must be before --end")
	}
	return start, end, nil
}

var recordingsCmd = &cobra.Command{
	Use:     "recordings",
	Short:   "Search recordings on a channel",
	Example: `  hikctl recordings --channel 1 --start 2024-01-15T00:00:00Z --event-type VMD`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		start, end, err := timeRange()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		results, err := client.SearchRecordings(ctx, hikvision.RecordingQuery{
			ChannelID:  channelID,
			Start:      start,
			End:        end,
			EventType:  eventType,
			StreamType: streamType,
			MaxResults: maxResults,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(results)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "START\tEND\tTYPE\tURI")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.StartTime, r.EndTime, r.EventType, adapters.SanitizeRtspUrl(r.PlaybackURI))
		}
		return w.Flush()
	},
}

var calendarYear, calendarMonth int

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "List the days of a month that have recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		now := time.Now()
		if calendarYear == 0 {
			calendarYear = now.Year()
		}
		if calendarMonth == 0 {
			calendarMonth = int(now.Month())
		}
		days, err := client.GetRecordingCalendar(ctx, channelID, calendarYear, calendarMonth)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(days)
		}
		fmt.Printf("%04d-%02d: %v\n", calendarYear, calendarMonth, days)
		return nil
	},
}

var playbackCmd = &cobra.Command{
	Use:   "playback",
	Short: "Print an RTSP playback URI for a time range",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		start, end, err := timeRange()
		if err != nil {
			return err
		}
		session := client.StartPlayback(channelID, start, end, streamType)
		if jsonOutput {
			return printJSON(session)
		}
		fmt.Printf("Session %s\n%s\n", session.SessionID, session.PlaybackURI)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd, recordingsCmd, calendarCmd, playbackCmd)

	for _, c := range []*cobra.Command{snapshotCmd, recordingsCmd, calendarCmd, playbackCmd} {
		c.Flags().IntVar(&channelID, "channel", 1, "channel id")
	}
	snapshotCmd.Flags().StringVar(&outputFile, "output", "snapshot.jpg", "Output filename")

	for _, c := range []*cobra.Command{recordingsCmd, playbackCmd} {
		c.Flags().StringVar(&startTime, "start", "", "range start (default 24h before end)")
		c.Flags().StringVar(&endTime, "end", "", "range end (default now)")
		c.Flags().IntVar(&streamType, "stream", 1, "1 main, 2 sub")
	}
	recordingsCmd.Flags().StringVar(&eventType, "event-type", "", "record type filter, e.g. VMD")
	recordingsCmd.Flags().IntVar(&maxResults, "max", adapters.MaxSearchResults, "maximum results")

	calendarCmd.Flags().IntVar(&calendarYear, "year", 0, "year (default current)")
	calendarCmd.Flags().IntVar(&calendarMonth, "month", 0, "month (default current)")
}
