package panels

import (
	"strconv"
	"strings"
	"time"

	"layer-composer/internal/generate"
	"layer-composer/internal/raster"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// formatFloat prints v with at most two decimals and no trailing zeros.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// shortRef abbreviates bitmap references for list rows.
func shortRef(ref string) string {
	if raster.IsDataURL(ref) {
		mime, _, _ := strings.Cut(strings.TrimPrefix(ref, "data:"), ";")
		return "inline " + mime
	}
	if len(ref) > 48 {
		return "..." + ref[len(ref)-45:]
	}
	return ref
}

// levelIcon picks the icon shown next to a generation log entry.
func levelIcon(level generate.Level) fyne.Resource {
	switch level {
	case generate.LevelSpinner:
		return theme.ViewRefreshIcon()
	case generate.LevelSuccess:
		return theme.ConfirmIcon()
	case generate.LevelError:
		return theme.ErrorIcon()
	case generate.LevelPrompt:
		return theme.DocumentCreateIcon()
	}
	return theme.InfoIcon()
}

func formatEntry(e generate.Entry) string {
	if e.Separator {
		return strings.Repeat("-", 24)
	}
	return e.Time.Format(time.TimeOnly) + "  " + e.Message
}
