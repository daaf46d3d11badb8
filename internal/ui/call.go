package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/utils"
)

const maxNotices = 5

// Controller is the part of the call engine the screen drives.
type Controller interface {
	ToggleScreenShare(ctx context.Context) (bool, error)
	ToggleAudio(ctx context.Context) (bool, error)
	ToggleVideo(ctx context.Context) (bool, error)
	Leave(ctx context.Context) error
}

type eventMsg call.Event

type actionDone struct {
	action string
	err    error
}

type clockMsg time.Time

// CallModel is the live call screen.
type CallModel struct {
	ctrl    Controller
	events  <-chan call.Event
	spinner spinner.Model

	snap     call.Snapshot
	notices  []call.Notice
	quitting bool
}

func NewCallModel(ctrl Controller, events <-chan call.Event) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return &CallModel{ctrl: ctrl, events: events, spinner: s}
}

// Snapshot is the last call state the screen saw.
func (m *CallModel) Snapshot() call.Snapshot {
	return m.snap
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), tick())
}

func (m *CallModel) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m *CallModel) act(action string, f func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return actionDone{action: action, err: f(ctx)}
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "s":
			return m, m.act("screen share", func(ctx context.Context) error {
				_, err := m.ctrl.ToggleScreenShare(ctx)
				return err
			})
		case "m":
			return m, m.act("microphone", func(ctx context.Context) error {
				_, err := m.ctrl.ToggleAudio(ctx)
				return err
			})
		case "v":
			return m, m.act("camera", func(ctx context.Context) error {
				_, err := m.ctrl.ToggleVideo(ctx)
				return err
			})
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Sequence(m.act("leave", m.ctrl.Leave), tea.Quit)
		}

	case eventMsg:
		if m.quitting {
			return m, nil
		}
		m.snap = msg.Snapshot
		if msg.Kind == call.EventNotice {
			m.notices = append(m.notices, msg.Notice)
			if len(m.notices) > maxNotices {
				m.notices = m.notices[len(m.notices)-maxNotices:]
			}
		}
		if m.snap.State == call.StateClosed {
			return m, tea.Quit
		}
		return m, m.listen()

	case actionDone:
		// the engine already reported the failure as a notice
		return m, nil

	case clockMsg:
		if m.quitting {
			return m, nil
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}
	s := m.snap
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s %s  %s\n\n", IconRoom, TitleStyle.Render(orDash(s.Room)), StatusStyle.Render(s.State.String()))

	switch s.State {
	case call.StateConnected:
		fmt.Fprintf(&b, "%s %s", IconPeer, SuccessStyle.Render(orDash(s.Peer)))
		if !s.ConnectedAt.IsZero() {
			fmt.Fprintf(&b, "  %s %s", IconTime, utils.FormatTimeDuration(time.Since(s.ConnectedAt)))
		}
		b.WriteString("\n")
	case call.StateWaiting:
		fmt.Fprintf(&b, "%s %s Waiting for participant...\n", m.spinner.View(), IconWaiting)
	case call.StateIdle, call.StateClosed:
		fmt.Fprintf(&b, "%s\n", MutedStyle.Render("Not in a call"))
	default:
		fmt.Fprintf(&b, "%s %s", m.spinner.View(), stateText(s.State))
		if s.Peer != "" {
			fmt.Fprintf(&b, " with %s", s.Peer)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + m.localView() + "\n")
	if r := s.Remote; r != nil {
		fmt.Fprintf(&b, "%s\n", MutedStyle.Render(fmt.Sprintf("%s: mic %s, camera %s, screen %s", orDash(s.Peer), onOff(r.Audio), onOff(r.Video), onOff(r.Screen))))
	}
	for _, t := range s.RemoteTracks {
		fmt.Fprintf(&b, "%s %s %s\n", IconSpeed, t.Kind, MutedStyle.Render(utils.FormatBitrate(t.Bitrate)))
	}

	if len(m.notices) > 0 {
		b.WriteString("\n")
		for _, n := range m.notices {
			b.WriteString(noticeView(n) + "\n")
		}
	}

	b.WriteString(FooterStyle.Render("s screen share • m mute • v video • q leave"))
	return b.String()
}

func (m *CallModel) localView() string {
	s := m.snap
	mic := IconMic + " mic on"
	if !s.Audio {
		mic = IconMuted + " mic off"
	}
	cam := IconCamera + " camera " + onOff(s.Video)
	screen := IconScreen + " screen " + onOff(s.Screen)

	preview := orDash(s.Preview)
	if s.Overlay != "" {
		preview += " + " + s.Overlay
	}
	lines := lipgloss.JoinVertical(lipgloss.Left,
		strings.Join([]string{mic, cam, screen}, "   "),
		MutedStyle.Render("preview: "+preview+"   sending: "+orDash(string(s.BoundVideo))),
	)
	return BoxStyle.Render(lines)
}

func stateText(s call.State) string {
	switch s {
	case call.StateAwaitingLocalMedia:
		return "Requesting camera and microphone..."
	case call.StateSignalingConnecting:
		return "Connecting to server..."
	case call.StateOffering, call.StateAnswering:
		return "Connecting"
	default:
		return s.String()
	}
}

func noticeView(n call.Notice) string {
	switch n.Level {
	case call.LevelSuccess:
		return SuccessStyle.Render(IconSuccess + " " + n.Text)
	case call.LevelWarning:
		return WarningStyle.Render(IconWarning + " " + n.Text)
	case call.LevelError:
		return ErrorStyle.Render(IconError + " " + n.Text)
	default:
		return IconInfo + " " + n.Text
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// RunCall shows the call screen until the user leaves. It returns the last
// snapshot it rendered.
func RunCall(ctrl Controller, events <-chan call.Event) (call.Snapshot, error) {
	m := NewCallModel(ctrl, events)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return m.Snapshot(), fmt.Errorf("call screen: %w", err)
	}
	return m.Snapshot(), nil
}
