// Package app is the root Bubble Tea model. It owns the sync
// subscription, the pop-up queue and the views, and routes messages
// between them.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/nhle/notification-sync/internal/keys"
	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/popup"
	"github.com/nhle/notification-sync/internal/source"
	"github.com/nhle/notification-sync/internal/source/mock"
	appsync "github.com/nhle/notification-sync/internal/sync"
	"github.com/nhle/notification-sync/internal/theme"
	"github.com/nhle/notification-sync/internal/ui"
	"github.com/nhle/notification-sync/internal/ui/command"
	"github.com/nhle/notification-sync/internal/ui/compose"
	"github.com/nhle/notification-sync/internal/ui/detail"
	helpview "github.com/nhle/notification-sync/internal/ui/help"
	"github.com/nhle/notification-sync/internal/ui/inbox"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewHelp
	ViewCompose
	ViewCommand
)

// Deps are the running collaborators the model drives.
type Deps struct {
	Sub *appsync.Subscription

	// Queue and PopupChanged are nil when pop-ups are disabled.
	Queue        *popup.Queue
	PopupChanged <-chan struct{}

	// Mock enables the generate and compose actions.
	Mock *mock.Backend

	Logger zerolog.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap
	inbox       inbox.Model
	detail      detail.Model
	helpView    helpview.Model
	compose     compose.Model
	commandView command.Model

	sub          *appsync.Subscription
	queue        *popup.Queue
	popupChanged <-chan struct{}
	popup        popup.State
	mock         *mock.Backend
	logger       zerolog.Logger

	lastErr error
	notice  string
	now     func() time.Time
	ready   bool
}

// New creates the root model around a started subscription.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	return Model{
		currentView:  ViewInbox,
		keys:         k,
		inbox:        inbox.New(k, 80, 22),
		detail:       detail.New(40, 22),
		helpView:     helpview.New(k, d.Mock != nil, 80, 22),
		compose:      compose.New(80, 22),
		commandView:  command.New(80, 3),
		sub:          d.Sub,
		queue:        d.Queue,
		popupChanged: d.PopupChanged,
		mock:         d.Mock,
		logger:       d.Logger.With().Str("comp", "app").Logger(),
		now:          time.Now,
	}
}

// Init starts listening for tick results and pop-up changes.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForResult(m.sub)}
	if m.popupChanged != nil {
		cmds = append(cmds, waitForPopup(m.popupChanged, m.sub.Done()))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		m.helpView.SetSize(msg.Width, m.layout.ContentHeight(0))
		m.compose.SetSize(msg.Width, m.layout.ContentHeight(0))
		m.commandView.SetSize(msg.Width, 3)
		// Forward to the form so huh can calculate its layout.
		if m.currentView == ViewCompose {
			return m.updateActiveView(msg)
		}
		return m, nil

	case resultMsg:
		r := msg.result
		m.lastErr = r.Err
		if r.Err != nil {
			m.logger.Debug().Err(r.Err).Msg("tick failed")
		}
		cmd := m.inbox.SetNotifications(r.Items)
		m.syncDetail()
		return m, tea.Batch(cmd, waitForResult(m.sub))

	case popupChangedMsg:
		m.popup = m.queue.State()
		m.resize()
		return m, waitForPopup(m.popupChanged, m.sub.Done())

	case inbox.MarkReadRequestMsg:
		return m, markRead(m.sub, msg.ID)

	case markReadDoneMsg:
		if msg.err != nil {
			m.notice = markReadNotice(msg.err)
			m.logger.Warn().Err(msg.err).Str("id", msg.id).Msg("mark read failed")
			return m, nil
		}
		m.notice = ""
		if m.queue != nil {
			m.queue.DismissID(msg.id)
		}
		cmd := m.inbox.SetNotifications(m.sub.Notifications())
		m.syncDetail()
		return m, cmd

	case compose.ComposedMsg:
		m.currentView = ViewInbox
		if m.mock == nil {
			return m, nil
		}
		return m, inject(m.mock, m.sub, msg)

	case compose.CancelMsg:
		m.currentView = ViewInbox
		return m, nil

	case command.CommandMsg:
		m.currentView = ViewInbox
		m.commandView.Blur()
		return m.executeCommand(string(msg))

	case command.CancelMsg:
		m.currentView = ViewInbox
		m.commandView.Blur()
		return m, nil

	case injectedMsg:
		if msg.err != nil {
			m.notice = "couldn't add notification: " + msg.err.Error()
			m.logger.Warn().Err(msg.err).Msg("mock inject failed")
		} else {
			m.notice = fmt.Sprintf("added %q", msg.title)
		}
		return m, nil

	case tea.KeyMsg:
		if m.currentView == ViewCommand {
			if msg.String() == "ctrl+c" {
				return m, m.quit()
			}
			return m.updateActiveView(msg)
		}
		if m.currentView == ViewCompose {
			switch msg.String() {
			case "ctrl+c":
				return m, m.quit()
			case "esc":
				m.currentView = ViewInbox
				return m, nil
			}
			return m.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, m.quit()

		case key.Matches(msg, m.keys.Help):
			m.toggleHelp()
			return m, nil

		case key.Matches(msg, m.keys.Command):
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = ViewInbox
			}
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			return m.executeCommand("refresh")

		case key.Matches(msg, m.keys.Dismiss):
			return m.executeCommand("dismiss")

		case key.Matches(msg, m.keys.Generate):
			if m.mock != nil {
				return m.executeCommand("generate")
			}

		case key.Matches(msg, m.keys.Compose):
			if m.mock != nil {
				return m.executeCommand("compose")
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
		m.syncDetail()
	case ViewCompose:
		m.compose, cmd = m.compose.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.syncStatus())
	statusBar := m.layout.RenderStatusBar(m.statusHints())

	var content string
	switch m.currentView {
	case ViewHelp:
		content = m.helpView.View()
	case ViewCompose:
		content = m.compose.View()
	case ViewCommand:
		content = lipgloss.JoinVertical(
			lipgloss.Left,
			m.commandView.View(),
			m.layout.RenderPanes(m.inbox.View(), m.detailView()),
		)
	default:
		content = m.layout.RenderPanes(m.inbox.View(), m.detailView())
	}

	return m.layout.RenderWithFrame(header, m.toastView(), content, statusBar)
}

func (m Model) headerTitle() string {
	title := "Notifications"
	if m.sub != nil {
		title += " · " + m.sub.SubscriberID()
	}
	if unread := m.inbox.Counts().Unread; unread > 0 {
		title += fmt.Sprintf(" [%d unread]", unread)
	}
	return title
}

// syncStatus describes the subscription for the header.
func (m Model) syncStatus() string {
	st := m.sub.Status()
	switch {
	case m.lastErr != nil && source.IsAuthError(m.lastErr):
		return theme.ErrorStyle.Render("⚠ sign-in rejected")
	case m.lastErr != nil:
		if st.LastSync.IsZero() {
			return theme.ErrorStyle.Render("⚠ couldn't refresh")
		}
		return theme.ErrorStyle.Render("⚠ couldn't refresh · showing " +
			humanize.RelTime(st.LastSync, m.now(), "ago", "from now"))
	case st.State == appsync.SyncRunning && !st.Seeded:
		return "loading…"
	case st.State == appsync.SyncRunning:
		return "syncing…"
	case st.LastSync.IsZero():
		return "waiting"
	default:
		return "updated " + humanize.RelTime(st.LastSync, m.now(), "ago", "from now")
	}
}

func (m Model) statusHints() string {
	if m.notice != "" {
		return m.notice
	}
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCompose:
		return "enter next | esc cancel"
	case ViewCommand:
		return "tab complete | enter run | esc cancel"
	default:
		return m.helpView.ShortView()
	}
}

func (m Model) toastView() string {
	if m.queue == nil {
		return ""
	}
	return ui.RenderToast(m.popup, m.layout.Width)
}

func (m Model) detailView() string {
	if _, w := m.layout.PaneWidths(); w == 0 {
		return ""
	}
	return m.detail.View()
}

// resize recomputes pane sizes; the toast strip takes its rendered height.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	reserved := 0
	if t := m.toastView(); t != "" {
		reserved = lipgloss.Height(t)
	}
	h := m.layout.ContentHeight(reserved)
	listW, detailW := m.layout.PaneWidths()
	m.inbox.SetSize(listW, h)
	if detailW > 0 {
		m.detail.SetSize(detailW, h)
	}
}

// executeCommand runs a palette command or its key shortcut.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "refresh", "sync":
		m.sub.Refresh()
		m.notice = ""
		return m, nil
	case "filter all", "all":
		return m, m.inbox.SetFilter(model.FilterAll)
	case "filter unread", "unread":
		return m, m.inbox.SetFilter(model.FilterUnread)
	case "filter read", "read":
		return m, m.inbox.SetFilter(model.FilterRead)
	case "dismiss":
		if m.queue != nil {
			m.queue.Dismiss()
		}
		return m, nil
	case "generate":
		if m.mock == nil {
			m.notice = "generate needs the mock backend"
			return m, nil
		}
		return m, generate(m.mock, m.sub)
	case "compose":
		if m.mock == nil {
			m.notice = "compose needs the mock backend"
			return m, nil
		}
		m.currentView = ViewCompose
		return m, m.compose.Start()
	case "help":
		m.toggleHelp()
		return m, nil
	case "quit", "q":
		return m, m.quit()
	default:
		m.notice = fmt.Sprintf("unknown command %q", cmd)
		return m, nil
	}
}

func (m *Model) toggleHelp() {
	if m.currentView == ViewHelp {
		m.currentView = ViewInbox
	} else {
		m.currentView = ViewHelp
	}
}

// syncDetail points the detail pane at the current selection.
func (m *Model) syncDetail() {
	n, ok := m.inbox.Selected()
	if !ok {
		m.detail.SetNotification(nil)
		return
	}
	m.detail.SetNotification(&n)
}

func (m *Model) quit() tea.Cmd {
	m.sub.Stop()
	if m.queue != nil {
		m.queue.Close()
	}
	return tea.Quit
}

func markReadNotice(err error) string {
	switch {
	case errors.Is(err, appsync.ErrNotAcknowledged):
		return "couldn't mark read: the server declined"
	case source.IsAuthError(err):
		return "couldn't mark read: sign-in rejected"
	default:
		return "couldn't mark read: " + err.Error()
	}
}
