package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps the detail pane.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle renders read notifications and secondary text.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ErrorStyle renders the "couldn't refresh" indicator.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// ToastStyle frames the pop-up overlay.
var ToastStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorMagenta)

// PushBadgeStyle marks items that arrived over push.
var PushBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorMagenta).
	Padding(0, 1)

// UnreadStyle renders the unread marker.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// KindStyle is the visual identity of one notification kind.
type KindStyle struct {
	Icon  string
	Color lipgloss.AdaptiveColor
	Label string
}

// Badge renders the kind's icon and label in its color.
func (k KindStyle) Badge() string {
	return lipgloss.NewStyle().Bold(true).Foreground(k.Color).Render(k.Icon + " " + k.Label)
}

// KindStyles maps every kind to its icon, color and label.
var KindStyles = map[model.Kind]KindStyle{
	model.KindOrderCreated:         {Icon: "🛒", Color: ColorBlue, Label: "Order created"},
	model.KindOrderCanceled:        {Icon: "✖", Color: ColorRed, Label: "Order canceled"},
	model.KindOrderShipped:         {Icon: "🚚", Color: ColorGreen, Label: "Order shipped"},
	model.KindOrderStatusUpdated:   {Icon: "↻", Color: ColorYellow, Label: "Order update"},
	model.KindPaymentConfirmed:     {Icon: "✔", Color: ColorGreen, Label: "Payment confirmed"},
	model.KindPaymentStatusChanged: {Icon: "◷", Color: ColorYellow, Label: "Payment status"},
	model.KindPaymentIssue:         {Icon: "⚠", Color: ColorOrange, Label: "Payment issue"},
	model.KindPaymentDispute:       {Icon: "⚖", Color: ColorMagenta, Label: "Payment dispute"},
	model.KindGeneric:              {Icon: "•", Color: ColorGray, Label: "Notification"},
}

// StyleFor returns the style of kind, falling back to the generic one.
func StyleFor(kind model.Kind) KindStyle {
	if s, ok := KindStyles[kind]; ok {
		return s
	}
	return KindStyles[model.KindGeneric]
}

// ChannelLabelStyle returns a color-coded style for a delivery channel.
func ChannelLabelStyle(channel model.Channel) lipgloss.Style {
	base := lipgloss.NewStyle().Padding(0, 1)

	switch channel {
	case model.ChannelInternal:
		return base.Foreground(ColorMagenta)
	case model.ChannelEmail:
		return base.Foreground(ColorGreen)
	case model.ChannelSMS:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}
