package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/technosupport/hikvision-bridge/internal/nvr"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

var (
	requestPayload string
	alarmBaseURL   string
	alarmPath      string
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device identity and capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		info, err := client.GetDeviceInfo(ctx)
		if err != nil {
			return fmt.Errorf("device info: %w", err)
		}
		caps := client.ProbeCapabilities(ctx, info)

		if jsonOutput {
			return printJSON(map[string]any{"info": info, "capabilities": caps})
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "Name:\t%s\n", info.Name)
		fmt.Fprintf(w, "Model:\t%s\n", info.Model)
		fmt.Fprintf(w, "Serial:\t%s\n", info.SerialNo)
		fmt.Fprintf(w, "Firmware:\t%s\n", info.FirmwareVersion)
		fmt.Fprintf(w, "Type:\t%s\n", info.DeviceType)
		fmt.Fprintf(w, "NVR:\t%v\n", caps.IsNVR)
		fmt.Fprintf(w, "Cameras:\t%d analog, %d digital\n", caps.AnalogCameras, caps.DigitalCameras)
		fmt.Fprintf(w, "I/O ports:\t%d in, %d out\n", caps.InputPorts, caps.OutputPorts)
		fmt.Fprintf(w, "Features:\t%s\n", strings.Join(features(caps), ", "))
		return w.Flush()
	},
}

func features(c *hikvision.DeviceCapabilities) []string {
	var out []string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{c.SupportPTZ, "ptz"},
		{c.SupportSiren, "siren"},
		{c.SupportStrobe, "strobe"},
		{c.SupportVoice, "voice"},
		{c.SupportTwoWayAudio, "two-way-audio"},
		{c.SupportVideoIntercom, "intercom"},
		{c.SupportANPR, "anpr"},
		{c.SupportAlarmServer, "alarm-server"},
		{c.SupportHolidayMode, "holiday-mode"},
	} {
		if f.on {
			out = append(out, f.name)
		}
	}
	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "Build the device model and list cameras and event entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		dev, err := nvr.NewBuilder(client, deviceCredential()).Build(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(dev)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMODEL\tPTZ\tEVENTS")
		fmt.Fprintln(w, "--\t----\t-----\t---\t------")
		for _, cam := range dev.Cameras {
			var ids []string
			for _, e := range cam.Events {
				if e.DetectionTarget == "" {
					ids = append(ids, e.ID)
				}
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%s\n", cam.ID, cam.Name, cam.Model, cam.SupportPTZ, strings.Join(ids, ","))
		}
		for _, e := range dev.Events {
			fmt.Fprintf(w, "-\t%s\t(device)\t-\t%s\n", e.Label, e.ID)
		}
		return w.Flush()
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		if err := client.Reboot(ctx); err != nil {
			return err
		}
		fmt.Println("Reboot requested.")
		return nil
	},
}

var requestCmd = &cobra.Command{
	Use:   "request METHOD PATH",
	Short: "Send a raw ISAPI request and print the response",
	Example: `  hikctl request GET System/status
  hikctl request PUT System/time --payload @time.xml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		payload := requestPayload
		if strings.HasPrefix(payload, "@") {
			data, err := os.ReadFile(payload[1:])
			if err != nil {
				return err
			}
			payload = string(data)
		}
		var body []byte
		if payload != "" {
			body = []byte(payload)
		}

		path := strings.TrimPrefix(strings.TrimPrefix(args[1], "/"), "ISAPI/")
		out, err := client.Request(ctx, strings.ToUpper(args[0]), path, body)
		if err != nil {
			if b := hikvision.ResponseBody(err); b != "" {
				fmt.Println(strings.ReplaceAll(b, "\r", ""))
			}
			return err
		}
		fmt.Println(strings.ReplaceAll(out, "\r", ""))
		return nil
	},
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "List HDD and NAS storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		disks, err := client.GetStorageDevices(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(disks)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tCAPACITY\tFREE\tIP")
		for _, d := range disks {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n", d.ID, d.Name, d.Type, strings.ToUpper(d.Status), d.Capacity, d.Freespace, d.IP)
		}
		return w.Flush()
	},
}

var alarmServerCmd = &cobra.Command{
	Use:   "alarm-server",
	Short: "Show or set the HTTP notification host",
}

var alarmServerGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the configured notification host",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		srv, err := client.GetAlarmServer(ctx)
		if err != nil {
			return err
		}
		if srv == nil {
			fmt.Println("No notification host configured.")
			return nil
		}
		if jsonOutput {
			return printJSON(srv)
		}
		fmt.Printf("%s %s:%d%s\n", srv.ProtocolType, srv.Address, srv.PortNo, srv.Path)
		return nil
	},
}

var alarmServerSetCmd = &cobra.Command{
	Use:     "set",
	Short:   "Point the device's notification host at a bridge",
	Example: `  hikctl alarm-server set --base-url http://10.0.0.5:8080 --path /api/hikvision`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		if err := client.SetAlarmServer(ctx, alarmBaseURL, alarmPath); err != nil {
			return err
		}
		fmt.Printf("Notification host set to %s%s\n", alarmBaseURL, alarmPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd, camerasCmd, rebootCmd, requestCmd, storageCmd, alarmServerCmd)
	alarmServerCmd.AddCommand(alarmServerGetCmd, alarmServerSetCmd)

	requestCmd.Flags().StringVar(&requestPayload, "payload", "", "request body, or @file")

	alarmServerSetCmd.Flags().StringVar(&alarmBaseURL, "base-url", "", "bridge base URL as seen from the device")
	alarmServerSetCmd.Flags().StringVar(&alarmPath, "path", "/api/hikvision", "notification path")
	_ = alarmServerSetCmd.MarkFlagRequired("base-url")
}
