package tui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/classbridge/chatkit/internal/chat"
	"github.com/classbridge/chatkit/internal/config"
	"github.com/classbridge/chatkit/internal/domain"
	"github.com/classbridge/chatkit/internal/identity"
	"github.com/classbridge/chatkit/internal/notify"
	"github.com/classbridge/chatkit/internal/rest"
)

const activateTimeout = 15 * time.Second

// Refresh asks the UI to re-render after an out-of-band state change
// (inbound chat event, typing expiry, notification store update).
// Producers push it into the event channel handed to Run.
type Refresh struct{}

type pane int

const (
	paneSidebar pane = iota
	paneChat
)

type activatedMsg struct {
	view   *chat.View
	client *chat.Client
}

type statusMsg string

type errMsg struct {
	err error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7C3AED")).
			Padding(0, 1).
			MarginRight(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	deletedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

type model struct {
	cfg    *config.Config
	self   *identity.Identity
	rest   *rest.Client
	store  *notify.Store
	events chan tea.Msg

	groups []domain.Group
	cursor int
	focus  pane

	view   *chat.View
	client *chat.Client

	input  textinput.Model
	status string
	errTxt string

	width  int
	height int
}

func newModel(cfg *config.Config, self *identity.Identity, restClient *rest.Client, store *notify.Store, groups []domain.Group, events chan tea.Msg) model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 1000
	input.Width = 50

	return model{
		cfg:    cfg,
		self:   self,
		rest:   restClient,
		store:  store,
		events: events,
		groups: groups,
		input:  input,
		focus:  paneSidebar,
	}
}

// Run drives the terminal client. events carries Refresh messages pushed
// by the SDK callbacks (chat view updates, notification store changes).
func Run(cfg *config.Config, self *identity.Identity, restClient *rest.Client, store *notify.Store, groups []domain.Group, events chan tea.Msg) error {
	m := newModel(cfg, self, restClient, store, groups, events)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case Refresh:
		return m, waitForEvent(m.events)

	case activatedMsg:
		m.view = msg.view
		m.client = msg.client
		m.errTxt = ""
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case errMsg:
		m.errTxt = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.closeActive()
		return m, tea.Quit
	case "esc":
		if m.focus == paneChat {
			m.closeActive()
			m.view = nil
			m.client = nil
			m.focus = paneSidebar
			m.input.Blur()
			return m, nil
		}
	}

	if m.focus == paneSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleChatKey(msg)
}

func (m model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.closeActive()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.groups)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.groups) == 0 {
			return m, nil
		}
		group := m.groups[m.cursor]
		m.closeActive()
		m.view = nil
		m.client = nil
		m.focus = paneChat
		m.input.Focus()
		m.errTxt = ""
		m.status = fmt.Sprintf("Opening %s...", group.Name)
		return m, m.openGroup(group)
	}
	return m, nil
}

func (m model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		text := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		if text == "" || m.client == nil {
			return m, nil
		}
		return m, m.submit(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	// Every edit keystroke signals typing; the client debounces.
	if m.client != nil && msg.Type == tea.KeyRunes {
		m.client.SendTyping()
	}
	return m, cmd
}

func (m model) openGroup(group domain.Group) tea.Cmd {
	events := m.events
	onUpdate := func() {
		select {
		case events <- Refresh{}:
		default:
		}
	}

	view := chat.NewView(group.ID, m.rest, m.store, onUpdate)
	client := chat.NewClient(m.cfg, m.self, group.ID, view.Apply)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), activateTimeout)
		defer cancel()

		if err := view.Activate(ctx, client); err != nil {
			view.Deactivate()
			return errMsg{err: err}
		}
		return activatedMsg{view: view, client: client}
	}
}

func (m *model) closeActive() {
	if m.view != nil {
		m.view.Deactivate()
	}
}

// submit routes the composed line: /edit, /delete and /file act on the
// group; anything else is a plain message.
func (m model) submit(text string) tea.Cmd {
	client := m.client

	switch {
	case strings.HasPrefix(text, "/edit "):
		args := strings.TrimPrefix(text, "/edit ")
		idStr, content, ok := strings.Cut(args, " ")
		id, err := strconv.Atoi(idStr)
		if !ok || err != nil {
			return func() tea.Msg { return statusMsg("usage: /edit <id> <text>") }
		}
		client.EditMessage(id, content)
		return nil

	case strings.HasPrefix(text, "/delete "):
		id, err := strconv.Atoi(strings.TrimPrefix(text, "/delete "))
		if err != nil {
			return func() tea.Msg { return statusMsg("usage: /delete <id>") }
		}
		client.DeleteMessage(id)
		return nil

	case strings.HasPrefix(text, "/file "):
		path := strings.TrimPrefix(text, "/file ")
		return m.uploadFile(path)

	default:
		client.SendMessage(text)
		return nil
	}
}

func (m model) uploadFile(path string) tea.Cmd {
	restClient := m.rest
	client := m.client

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return errMsg{err: fmt.Errorf("open %s: %w", path, err)}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), activateTimeout)
		defer cancel()

		result, err := restClient.Upload(ctx, path, f)
		if err != nil {
			return errMsg{err: fmt.Errorf("upload %s: %w", path, err)}
		}
		client.SendFile(result.FileURL, result.FileType)
		return statusMsg(fmt.Sprintf("Sent file %s", path))
	}
}

func (m model) View() string {
	title := "chatkit"
	if m.store.HasAnyNotifications() {
		title += " •"
	}
	header := titleStyle.Render(title) + mutedStyle.Render("  "+m.self.FullName)

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), m.renderChat())

	footer := mutedStyle.Render(m.status)
	if m.errTxt != "" {
		footer = errorStyle.Render(m.errTxt)
	}

	return header + "\n" + body + "\n" + footer
}

func (m model) renderSidebar() string {
	var b strings.Builder
	b.WriteString("Groups\n")

	for i, group := range m.groups {
		line := group.Name
		if badge := m.badge(group.ID); badge != "" {
			line += " " + badgeStyle.Render(badge)
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if len(m.groups) == 0 {
		b.WriteString(mutedStyle.Render("no groups") + "\n")
	}
	return sidebarStyle.Render(b.String())
}

func (m model) badge(groupID int) string {
	state, ok := m.store.Group(groupID)
	if !ok {
		return ""
	}
	var marks []string
	if state.HasMessage {
		marks = append(marks, "m")
	}
	if state.HasPoll {
		marks = append(marks, "p")
	}
	if state.HasFile {
		marks = append(marks, "f")
	}
	if len(marks) == 0 {
		return ""
	}
	return "[" + strings.Join(marks, "") + "]"
}

func (m model) renderChat() string {
	if m.view == nil {
		return mutedStyle.Render("\n  Select a group and press enter.")
	}

	var b strings.Builder

	messages := m.view.Messages()
	visible := m.height - 8
	if visible < 1 {
		visible = 10
	}
	if len(messages) > visible {
		messages = messages[len(messages)-visible:]
	}

	for _, msg := range messages {
		b.WriteString(renderMessage(msg) + "\n")
	}

	if typing := m.view.TypingNames(); len(typing) > 0 {
		b.WriteString(mutedStyle.Render(strings.Join(typing, ", ")+" typing...") + "\n")
	}

	b.WriteString(m.input.View())
	return b.String()
}

func renderMessage(msg domain.Message) string {
	stamp := msg.Timestamp.Local().Format("15:04")
	prefix := fmt.Sprintf("[%s] #%d %s: ", stamp, msg.ID, msg.Sender.FullName)

	if msg.IsDeleted {
		return prefix + deletedStyle.Render(msg.Content)
	}
	if msg.FileURL != "" {
		return prefix + fmt.Sprintf("sent a file %s (%s)", msg.FileURL, msg.FileType)
	}
	return prefix + msg.Content
}
