package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFormatters(t *testing.T) {
	for _, tc := range []struct {
		name   string
		format func(string) string
		icon   string
	}{
		{"success", FormatSuccess, IconSuccess},
		{"error", FormatError, IconError},
		{"warning", FormatWarning, IconWarning},
		{"info", FormatInfo, IconInfo},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := tc.format("some message")
			assert.Contains(t, out, tc.icon)
			assert.Contains(t, out, "some message")
		})
	}
}

func TestFormatKeyValue(t *testing.T) {
	out := FormatKeyValue("Status", "Active")
	assert.Contains(t, out, "Status")
	assert.Contains(t, out, "Active")
}

func TestDisableColors(t *testing.T) {
	originalPrimary, originalSuccess := Primary, Success
	t.Cleanup(func() {
		Primary, Success = originalPrimary, originalSuccess
	})

	DisableColors()

	assert.Empty(t, string(Primary))
	assert.Empty(t, string(Success))
}

func TestIcons(t *testing.T) {
	for _, icon := range []string{
		IconSuccess, IconError, IconWarning, IconInfo,
		IconArrow, IconDot, IconPending, IconStream, IconHealth,
	} {
		assert.NotEmpty(t, icon)
	}
}

func TestStylesRender(t *testing.T) {
	assert.NotPanics(t, func() {
		for _, s := range []interface{ Render(...string) string }{
			Bold, Title, Subtitle, Normal, Muted, Code,
			SuccessStyle, WarningStyle, ErrorStyle, InfoStyle, Highlight, Box,
		} {
			_ = s.Render("test")
		}
	})
}
