package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	session "github.com/livegal/livegal-core/core"
	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/narrative"
	"github.com/livegal/livegal-core/core/transcription"
	"github.com/livegal/livegal-core/core/vision"
)

// Messages pushed into the program by the session callbacks.
type (
	stateChangedMsg   struct{ state session.State }
	dialogueMsg       struct{ visible string }
	speakerChangedMsg struct{ speaker string }
	optionsChangedMsg struct{ options []narrative.Option }
	alertMsg          struct{ result vision.Result }
	alertClearedMsg   struct{}
	channelStatusMsg  struct{ status transcription.Status }
	deviceErrorMsg    struct{ err error }
	facingChangedMsg  struct{ facing media.FacingMode }
)

type theme struct {
	title   lipgloss.Style
	speaker lipgloss.Style
	dialog  lipgloss.Style
	option  lipgloss.Style
	hint    lipgloss.Style
	alert   lipgloss.Style
	errBox  lipgloss.Style
	status  lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		speaker: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("219")),
		dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		option: lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		hint:   lipgloss.NewStyle().Faint(true),
		alert: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("196")).
			Foreground(lipgloss.Color("196")).
			Padding(0, 1),
		errBox: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		status: lipgloss.NewStyle().Faint(true),
	}
}

type model struct {
	session *session.Session
	th      theme

	width  int
	height int

	state         session.State
	speaker       string
	dialogue      string
	options       []narrative.Option
	facing        media.FacingMode
	channelStatus transcription.Status

	alert      *vision.Result
	deviceErr  error
	spin       spinner.Model
	quitting   bool
}

func newModel(s *session.Session, initialFacing media.FacingMode) model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	return model{
		session:       s,
		th:            defaultTheme(),
		state:         session.StateInitializing,
		facing:        initialFacing,
		channelStatus: transcription.StatusClosed,
		spin:          spin,
	}
}

func (m model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateChangedMsg:
		m.state = msg.state
		if m.state != session.StateError {
			m.deviceErr = nil
		}
		return m, nil
	case dialogueMsg:
		m.dialogue = msg.visible
		return m, nil
	case speakerChangedMsg:
		m.speaker = msg.speaker
		return m, nil
	case optionsChangedMsg:
		m.options = msg.options
		return m, nil
	case alertMsg:
		result := msg.result
		m.alert = &result
		return m, nil
	case alertClearedMsg:
		m.alert = nil
		return m, nil
	case channelStatusMsg:
		m.channelStatus = msg.status
		return m, nil
	case deviceErrorMsg:
		m.deviceErr = msg.err
		return m, nil
	case facingChangedMsg:
		m.facing = msg.facing
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "c":
		m.session.SwitchCamera()
		return m, nil
	case "d":
		if m.alert != nil {
			m.session.DismissAlert()
		}
		return m, nil
	case "r":
		if m.state == session.StateError {
			m.session.Retry()
		}
		return m, nil
	}

	if key.Type == tea.KeyRunes && len(key.Runes) == 1 {
		if index := int(key.Runes[0] - '1'); index >= 0 && index < len(m.options) {
			m.session.SelectOption(m.options[index].ID)
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	inner := width - 6
	if inner < 20 {
		inner = 20
	}

	sections := []string{
		m.th.title.Render("Live Galgame"),
	}

	if m.state == session.StateError {
		message := "capture device unavailable"
		if m.deviceErr != nil {
			message = m.deviceErr.Error()
		}
		sections = append(sections,
			m.th.errBox.Render(wordwrap.String(message, inner)),
			m.th.hint.Render("r retry · q quit"),
		)
		return strings.Join(sections, "\n\n") + "\n"
	}

	if m.alert != nil {
		warning := fmt.Sprintf("注意: 检测到 %s (%.0f%%)", m.alert.Class, m.alert.Confidence*100)
		sections = append(sections, m.th.alert.Render(wordwrap.String(warning, inner)))
	}

	speaker := m.speaker
	if speaker == "" {
		speaker = "……"
	}
	dialogue := m.dialogue
	if m.state == session.StateAwaitingBranch {
		dialogue += " " + m.spin.View()
	}
	sections = append(sections,
		m.th.speaker.Render(speaker),
		m.th.dialog.Width(inner).Render(wordwrap.String(dialogue, inner-2)),
	)

	if len(m.options) > 0 {
		lines := make([]string, 0, len(m.options))
		for i, option := range m.options {
			lines = append(lines, m.th.option.Render(fmt.Sprintf("%d. %s", i+1, option.Text)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	sections = append(sections, m.statusLine())
	return strings.Join(sections, "\n\n") + "\n"
}

func (m model) statusLine() string {
	hints := []string{"c camera", "q quit"}
	if m.alert != nil {
		hints = append([]string{"d dismiss"}, hints...)
	}
	if len(m.options) > 0 {
		hints = append([]string{fmt.Sprintf("1-%d choose", len(m.options))}, hints...)
	}

	return m.th.status.Render(fmt.Sprintf(
		"%s · %s camera · asr %s · %s",
		m.state, m.facing, m.channelStatus, strings.Join(hints, " · "),
	))
}
