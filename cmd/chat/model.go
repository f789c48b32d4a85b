package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/QiangXu1564/order-reserve-aid/internal/chat"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	botStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#0a84ff")).Bold(true)
	userStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#30d158")).Bold(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)
)

type connState int

const (
	stateConnecting connState = iota
	stateConnected
	stateDisconnected
)

// Messages delivered to the model.
type (
	connectedMsg    struct{}
	disconnectedMsg struct{ err error }
	chatMsg         struct{ message chat.Message }
	endMsg          struct{}
	sendFailedMsg   struct{ content string }
)

// watchedUpstream reports a successful connect before the stream is read.
type watchedUpstream struct {
	chat.Upstream
	events chan<- tea.Msg
}

func (w watchedUpstream) Connect(ctx context.Context, reservationID string) (io.ReadCloser, error) {
	body, err := w.Upstream.Connect(ctx, reservationID)
	if err == nil {
		w.events <- connectedMsg{}
	}
	return body, err
}

// Model is the chat screen for one reservation conversation.
type Model struct {
	ctx           context.Context
	session       *chat.Session
	events        chan tea.Msg
	reservationID string

	input    textinput.Model
	spinner  spinner.Model
	messages []chat.Message
	state    connState
	ended    bool
	err      string
}

func newModel(ctx context.Context, upstream chat.Upstream, reservationID string) Model {
	events := make(chan tea.Msg, 64)
	session := chat.NewSession(watchedUpstream{Upstream: upstream, events: events}, reservationID, nil)
	session.OnMessage(func(m chat.Message) { events <- chatMsg{message: m} })
	session.OnEnd(func() { events <- endMsg{} })

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	return Model{
		ctx:           ctx,
		session:       session,
		events:        events,
		reservationID: reservationID,
		input:         ti,
		spinner:       s,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, connect(m.ctx, m.session), waitForEvent(m.events))
}

// connect blocks for the life of the stream.
func connect(ctx context.Context, s *chat.Session) tea.Cmd {
	return func() tea.Msg {
		return disconnectedMsg{err: s.Connect(ctx)}
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func send(ctx context.Context, s *chat.Session, content string) tea.Cmd {
	return func() tea.Msg {
		if !s.Send(ctx, content) {
			return sendFailedMsg{content: content}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			content := strings.TrimSpace(m.input.Value())
			if content == "" || m.state != stateConnected {
				return m, nil
			}
			m.input.SetValue("")
			m.err = ""
			return m, send(m.ctx, m.session, content)
		}
	case connectedMsg:
		m.state = stateConnected
		return m, waitForEvent(m.events)
	case chatMsg:
		m.messages = append(m.messages, msg.message)
		return m, waitForEvent(m.events)
	case endMsg:
		m.ended = true
		return m, waitForEvent(m.events)
	case disconnectedMsg:
		m.state = stateDisconnected
		if msg.err != nil {
			m.err = msg.err.Error()
		}
		return m, nil
	case sendFailedMsg:
		m.err = fmt.Sprintf("message not sent: %q", msg.content)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Reservation " + m.reservationID))
	b.WriteString(" ")
	switch m.state {
	case stateConnecting:
		b.WriteString(m.spinner.View() + " connecting...")
	case stateConnected:
		b.WriteString(onlineStyle.Render("online"))
	case stateDisconnected:
		b.WriteString(offlineStyle.Render("offline"))
	}
	b.WriteString("\n\n")

	for _, msg := range m.messages {
		who := botStyle.Render("agent")
		if msg.Sender == chat.SenderUser {
			who = userStyle.Render("you")
		}
		fmt.Fprintf(&b, "%s %s  %s\n", msg.Timestamp.Format("15:04"), who, msg.Content)
	}
	if m.ended {
		b.WriteString("\nThe agent ended the conversation.\n")
	}
	if m.err != "" {
		b.WriteString("\n" + offlineStyle.Render(m.err) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString("Press 'enter' to send, 'esc' to quit\n")
	return docStyle.Render(b.String())
}
