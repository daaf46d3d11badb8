package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/roomid"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/BioHazard786/Warpcall/internal/utils"
)

var callCmd = &cobra.Command{
	Use:     "call [room]",
	Aliases: []string{"c", "join"},
	Short:   "Start or join a call",
	Long: `Join a two-person room on the relay. Without a room a new one is
created and its name printed so the other person can join.

Keys during a call: s toggles screen share, m mutes, v toggles the camera,
q leaves.

Examples:
  warpcall call
  warpcall call amber-heron-lisbon-calm
  warpcall call --server relay.example.com --name Alice team-sync`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room := ""
		if len(args) == 1 {
			room = args[0]
		}
		return runCall(cmd.Context(), room)
	},
}

func init() {
	addCallFlags(callCmd)
	rootCmd.AddCommand(callCmd)
}

func runCall(ctx context.Context, room string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	created := room == ""
	if created {
		room = roomid.Generate()
	}

	session, err := NewCallSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	stopSpinner := ui.RunConnectionSpinner("Joining " + room + "...")
	joinCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = session.Engine.Join(joinCtx, room, cfg.DisplayName)
	cancel()
	stopSpinner()
	if err != nil {
		return err
	}

	if created {
		fmt.Println(ui.RoomInfoView(room, "warpcall call "+room))
	}

	snap, err := ui.RunCall(session.Engine, session.Engine.Events())
	if err != nil {
		return err
	}

	fmt.Println()
	ui.RenderCallSummary("📊 Call Summary", summarize(snap))
	return nil
}

func summarize(s call.Snapshot) ui.CallSummary {
	summary := ui.CallSummary{Room: s.Room, Peer: s.Peer, Status: "Ended"}
	if s.State == call.StateClosed {
		summary.Status = "Failed"
	}
	if !s.ConnectedAt.IsZero() {
		summary.Duration = utils.FormatTimeDuration(time.Since(s.ConnectedAt))
	}
	var total uint64
	for _, t := range s.RemoteTracks {
		total += t.Bytes
	}
	if total > 0 {
		summary.Received = utils.FormatSize(int64(total))
	}
	return summary
}
