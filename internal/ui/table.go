package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	ptable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// CallSummary is shown after a call ends.
type CallSummary struct {
	Room     string
	Peer     string
	Duration string
	Received string
	Status   string
}

func CallSummaryView(title string, s CallSummary) string {
	rows := [][]string{
		{"Room", s.Room},
		{"Peer", orDash(s.Peer)},
		{"Duration", orDash(s.Duration)},
		{"Received", orDash(s.Received)},
		{"Status", s.Status},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Metric", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return TitleStyle.Render(title) + "\n" + tbl.Render()
}

func RenderCallSummary(title string, s CallSummary) {
	fmt.Println(CallSummaryView(title, s))
}

// RoomRow is one live room on the relay.
type RoomRow struct {
	Room         string
	Participants []string
}

// RoomsView renders the relay's rooms.
func RoomsView(rooms []RoomRow) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No active rooms")
	}

	t := ptable.NewWriter()
	t.SetStyle(ptable.StyleRounded)
	t.Style().Color.Header = text.Colors{text.Bold, text.FgCyan}
	t.AppendHeader(ptable.Row{"#", "Room", "Participants", "Seats"})
	for i, r := range rooms {
		t.AppendRow(ptable.Row{i + 1, r.Room, strings.Join(r.Participants, ", "), fmt.Sprintf("%d/2", len(r.Participants))})
	}
	t.AppendFooter(ptable.Row{"", "Total", len(rooms), ""})
	return t.Render()
}

// DeviceRow is one capture device and the result of probing it.
type DeviceRow struct {
	Kind   string
	Label  string
	ID     string
	Status string
}

// DevicesView renders enumerated devices.
func DevicesView(devices []DeviceRow) string {
	if len(devices) == 0 {
		return MutedStyle.Render("No capture devices found")
	}

	t := ptable.NewWriter()
	t.SetStyle(ptable.StyleRounded)
	t.Style().Color.Header = text.Colors{text.Bold, text.FgCyan}
	t.AppendHeader(ptable.Row{"Kind", "Label", "ID", "Status"})
	for _, d := range devices {
		t.AppendRow(ptable.Row{d.Kind, d.Label, d.ID, d.Status})
	}
	t.SortBy([]ptable.SortBy{{Name: "Kind", Mode: ptable.Asc}})
	return t.Render()
}

// RoomInfoView is the banner shown after joining a room.
func RoomInfoView(room, joinCmd string) string {
	content := fmt.Sprintf("%s Room: %s\n%s Join with: %s",
		IconRoom, BoldStyle.Foreground(Primary).Render(room),
		IconCopy, MutedStyle.Render(joinCmd),
	)
	return SuccessBoxStyle.Render(content)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
