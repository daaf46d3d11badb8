package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/BioHazard786/Warpcall/internal/webrtc"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices and test camera and microphone access",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := checkDevices(cmd.Context(), newCapturer(), &webrtc.Display{})
		if err != nil {
			return err
		}
		fmt.Println(ui.DevicesView(rows))
		return nil
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&flagNoCamera, "no-camera", false, "Pretend no camera is attached")
	devicesCmd.Flags().BoolVar(&flagNoMic, "no-mic", false, "Pretend no microphone is attached")
	rootCmd.AddCommand(devicesCmd)
}

// checkDevices enumerates devices and tries a camera acquisition and a
// screen capture the way a call would.
func checkDevices(ctx context.Context, capturer media.Capturer, display media.DisplayCapturer) ([]ui.DeviceRow, error) {
	devices, err := capturer.EnumerateDevices(ctx)
	if err != nil {
		return nil, err
	}

	m := media.NewManager(capturer, display)
	defer m.StopAll()

	status := func(err error) string {
		var ae *media.AccessError
		switch {
		case err == nil:
			return ui.IconSuccess + " ok"
		case errors.As(err, &ae):
			return ui.IconError + " " + ae.Message()
		default:
			return ui.IconError + " " + err.Error()
		}
	}

	camErr := m.AcquireCamera(ctx)
	rows := make([]ui.DeviceRow, 0, len(devices)+1)
	for _, d := range devices {
		st := status(camErr)
		if camErr == nil {
			src := media.CameraVideo
			if d.Kind == media.AudioInput {
				src = media.CameraAudio
			}
			if m.Track(src) == nil {
				st = ui.IconWarning + " no track"
			}
		}
		rows = append(rows, ui.DeviceRow{Kind: string(d.Kind), Label: d.Label, ID: d.ID, Status: st})
	}

	_, shareErr := m.StartScreenShare(ctx)
	rows = append(rows, ui.DeviceRow{Kind: "display", Label: "Screen", ID: "-", Status: status(shareErr)})
	return rows, nil
}
