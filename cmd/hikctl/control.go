package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

var (
	pan, tilt, zoom int
	sirenDuration   int
	sirenVolume     int
	strobeDuration  int
	strobeFrequency string
	voiceAudioID    int
)

var ptzCmd = &cobra.Command{
	Use:   "ptz",
	Short: "Pan/tilt/zoom control",
}

var ptzInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "List PTZ support, presets and patrols for a channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		info := client.GetPTZInfo(ctx, channelID)
		if jsonOutput {
			return printJSON(info)
		}
		if !info.IsSupported {
			fmt.Printf("Channel %d has no PTZ\n", channelID)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "KIND\tID\tNAME\tENABLED")
		for _, p := range info.Presets {
			fmt.Fprintf(w, "preset\t%d\t%s\t%t\n", p.ID, p.Name, p.Enabled)
		}
		for _, p := range info.Patrols {
			fmt.Fprintf(w, "patrol\t%d\t%s\t%t\n", p.ID, p.Name, p.Enabled)
		}
		return w.Flush()
	},
}

var ptzMoveCmd = &cobra.Command{
	Use:     "move",
	Short:   "Continuous move; all zero stops",
	Example: `  hikctl ptz move --channel 1 --pan 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ptzClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()
		return client.PTZMove(ctx, channelID, pan, tilt, zoom)
	},
}

var ptzPresetCmd = &cobra.Command{
	Use:   "preset ID",
	Short: "Go to a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid preset id %q", args[0])
		}
		client, err := ptzClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()
		return client.PTZGotoPreset(ctx, channelID, id)
	},
}

var ptzPatrolCmd = &cobra.Command{
	Use:       "patrol start|stop|status ID",
	Short:     "Start, stop or check a patrol",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"start", "stop", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid patrol id %q", args[1])
		}
		client, err := ptzClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		switch args[0] {
		case "start", "stop":
			return client.PTZPatrol(ctx, channelID, id, args[0] == "start")
		case "status":
			running := client.PTZPatrolRunning(ctx, channelID, id)
			if jsonOutput {
				return printJSON(map[string]bool{"running": running})
			}
			fmt.Printf("Patrol %d running: %t\n", id, running)
			return nil
		default:
			return fmt.Errorf("unknown patrol command %q", args[0])
		}
	},
}

// ptzClient probes the channel first so the client's PTZ gate is open.
func ptzClient() (*hikvision.Client, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	ctx, cancel := commandContext()
	defer cancel()
	client.SetChannelPTZ(channelID, client.GetPTZSupport(ctx, channelID))
	return client, nil
}

var sirenCmd = &cobra.Command{
	Use:   "siren",
	Short: "Sound the built-in siren",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		p := hikvision.DefaultSirenParams()
		p.Duration = sirenDuration
		p.Volume = sirenVolume
		return client.TriggerSiren(ctx, p)
	},
}

var strobeCmd = &cobra.Command{
	Use:   "strobe",
	Short: "Flash the white light",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()
		return client.TriggerStrobe(ctx, channelID, strobeDuration, strobeFrequency)
	},
}

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Play a stored voice prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		p := hikvision.DefaultVoiceParams()
		p.AudioID = voiceAudioID
		return client.PlayVoice(ctx, p)
	},
}

var audioCmd = &cobra.Command{
	Use:   "audio open|close",
	Short: "Open or close a two-way audio session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		var res hikvision.Result
		switch args[0] {
		case "open":
			res = client.StartTwoWayAudio(ctx, channelID)
		case "close":
			res = client.StopTwoWayAudio(ctx, channelID)
		default:
			return fmt.Errorf("unknown audio command %q", args[0])
		}
		if !res.OK {
			return res.Err
		}
		fmt.Printf("Two-way audio on channel %d: %s\n", channelID, args[0])
		return nil
	},
}

var audioChannelsCmd = &cobra.Command{
	Use:   "audio-channels",
	Short: "List two-way audio channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		channels, err := client.GetTwoWayAudioChannels(ctx)
		if err != nil {
			return err
		}
		return printJSON(channels)
	},
}

func init() {
	ptzCmd.AddCommand(ptzInfoCmd, ptzMoveCmd, ptzPresetCmd, ptzPatrolCmd)
	rootCmd.AddCommand(ptzCmd, sirenCmd, strobeCmd, voiceCmd, audioCmd, audioChannelsCmd)

	ptzCmd.PersistentFlags().IntVar(&channelID, "channel", 1, "channel id")
	ptzMoveCmd.Flags().IntVar(&pan, "pan", 0, "pan speed -100..100")
	ptzMoveCmd.Flags().IntVar(&tilt, "tilt", 0, "tilt speed -100..100")
	ptzMoveCmd.Flags().IntVar(&zoom, "zoom", 0, "zoom speed -100..100")

	defaults := hikvision.DefaultSirenParams()
	sirenCmd.Flags().IntVar(&sirenDuration, "duration", defaults.Duration, "seconds")
	sirenCmd.Flags().IntVar(&sirenVolume, "volume", defaults.Volume, "0..100")

	strobeCmd.Flags().IntVar(&channelID, "channel", 1, "channel id")
	strobeCmd.Flags().IntVar(&strobeDuration, "duration", 15, "seconds")
	strobeCmd.Flags().StringVar(&strobeFrequency, "frequency", "medium", "low, medium, high or constant")

	voiceCmd.Flags().IntVar(&voiceAudioID, "audio-id", hikvision.DefaultVoiceParams().AudioID, "stored prompt id")

	audioCmd.Flags().IntVar(&channelID, "channel", 1, "channel id")
}
