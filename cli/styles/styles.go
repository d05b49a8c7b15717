// Package styles defines the color palette and reusable lipgloss styles
// for the burrow CLI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette. Primary is a burnt amber, secondary a cyan accent.
var (
	Primary      = lipgloss.Color("#D97706")
	PrimaryLight = lipgloss.Color("#FBBF24")
	Secondary    = lipgloss.Color("#0891B2")

	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")
	Info    = lipgloss.Color("#3B82F6")

	Text      = lipgloss.Color("#F9FAFB")
	TextMuted = lipgloss.Color("#9CA3AF")
	Surface   = lipgloss.Color("#1F2937")
	Border    = lipgloss.Color("#374151")
)

// Text styles shared by every command.
var (
	Bold      = lipgloss.NewStyle().Bold(true)
	Title     = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)
	Subtitle  = lipgloss.NewStyle().Bold(true).Foreground(PrimaryLight)
	Normal    = lipgloss.NewStyle().Foreground(Text)
	Muted     = lipgloss.NewStyle().Foreground(TextMuted)
	Highlight = lipgloss.NewStyle().Bold(true).Foreground(Secondary)
	Code      = lipgloss.NewStyle().Foreground(PrimaryLight).Background(Surface).Padding(0, 1)
)

// Status styles.
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error)
	InfoStyle    = lipgloss.NewStyle().Foreground(Info)
)

// Icons.
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconArrow   = "→"
	IconDot     = "•"
	IconPending = "◌"
	IconStream  = "⇶"
	IconHealth  = "♥"
)

// Box is a rounded-border container style.
var Box = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Border).Padding(1, 2)

func badge(style lipgloss.Style, icon, msg string) string {
	return style.Render(icon) + " " + Normal.Render(msg)
}

// FormatSuccess formats a success message with icon.
func FormatSuccess(msg string) string { return badge(SuccessStyle, IconSuccess, msg) }

// FormatError formats an error message with icon.
func FormatError(msg string) string { return badge(ErrorStyle, IconError, msg) }

// FormatWarning formats a warning message with icon.
func FormatWarning(msg string) string { return badge(WarningStyle, IconWarning, msg) }

// FormatInfo formats an info message with icon.
func FormatInfo(msg string) string { return badge(InfoStyle, IconInfo, msg) }

// FormatKeyValue formats a key-value pair with a fixed-width key column.
func FormatKeyValue(key, value string) string {
	keyStyle := lipgloss.NewStyle().Foreground(TextMuted).Width(20)
	return keyStyle.Render(key+":") + " " + Highlight.Render(value)
}

// DisableColors resets the palette for terminals without color support.
func DisableColors() {
	for _, c := range []*lipgloss.Color{
		&Primary, &PrimaryLight, &Secondary,
		&Success, &Warning, &Error, &Info,
		&Text, &TextMuted, &Surface, &Border,
	} {
		*c = lipgloss.Color("")
	}
}
