package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/dns"
	"github.com/BioHazard786/Warpcall/internal/relay"
	"github.com/BioHazard786/Warpcall/internal/ui"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms open on the relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		stopSpinner := ui.RunSpinner("Fetching rooms...")
		rooms, err := fetchRooms(cmd.Context(), cfg.APIURL("/api/rooms"))
		stopSpinner()
		if err != nil {
			return err
		}

		rows := make([]ui.RoomRow, 0, len(rooms))
		for _, r := range rooms {
			rows = append(rows, ui.RoomRow{Room: r.Room, Participants: r.Participants})
		}
		fmt.Println(ui.RoomsView(rows))
		return nil
	},
}

func init() {
	addServerFlags(roomsCmd)
	rootCmd.AddCommand(roomsCmd)
}

// ErrUnexpectedStatus is returned when the relay answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected status from relay")

var httpClient = &http.Client{
	Timeout:   10 * time.Second,
	Transport: &http.Transport{DialContext: dns.DialContext},
}

func fetchRooms(ctx context.Context, url string) ([]relay.RoomInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list rooms: %w: %s", ErrUnexpectedStatus, resp.Status)
	}
	var rooms []relay.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return rooms, nil
}
