// Package compose is the mock-mode form for injecting a notification.
package compose

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/theme"
)

// ComposedMsg is dispatched when the form is submitted.
type ComposedMsg struct {
	EventType string
	Push      bool
	Title     string
	Message   string
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	eventType string
	push      bool
	title     string
	message   string
}

// Model is the Bubble Tea model for the compose form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start resets the fields and builds a fresh form.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{eventType: model.EventTypes()[0], push: true}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		out := m.composed()
		m.form = nil
		return m, func() tea.Msg { return out }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New Notification") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// Active reports whether a form is open.
func (m Model) Active() bool { return m.form != nil }

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	opts := make([]huh.Option[string], 0, len(model.EventTypes()))
	for _, et := range model.EventTypes() {
		opts = append(opts, huh.NewOption(eventLabel(et), et))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Event").
				Options(opts...).
				Value(&m.fb.eventType),
			huh.NewConfirm().
				Title("Deliver over push?").
				Affirmative("Push").
				Negative("Email only").
				Value(&m.fb.push),
			huh.NewInput().
				Title("Title").
				Placeholder("Leave empty to derive from the message").
				Value(&m.fb.title),
			huh.NewText().
				Title("Message").
				Placeholder("What happened?").
				Value(&m.fb.message).
				Validate(validateRequired("Message")),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) composed() ComposedMsg {
	return ComposedMsg{
		EventType: m.fb.eventType,
		Push:      m.fb.push,
		Title:     strings.TrimSpace(m.fb.title),
		Message:   strings.TrimSpace(m.fb.message),
	}
}

// eventLabel renders "order_created" as "Order created".
func eventLabel(eventType string) string {
	s := strings.ReplaceAll(eventType, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
