// coach/utils/color/color.go
package color

import (
	"github.com/fatih/color"
)

var (
	promptColor    = color.New(color.FgCyan, color.Bold)
	infoColor      = color.New(color.FgGreen)
	pendingColor   = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed, color.Bold)
	tutorColor     = color.New(color.FgHiYellow, color.Bold)
	timestampColor = color.New(color.FgHiBlack)
)

func ColorPrompt(s string) string {
	return promptColor.Sprint(s)
}

func ColorInfo(s string) string {
	return infoColor.Sprint(s)
}

func ColorPending(s string) string {
	return pendingColor.Sprint(s)
}

func ColorError(s string) string {
	return errorColor.Sprint(s)
}

func ColorTutor(s string) string {
	return tutorColor.Sprint(s)
}

func ColorTimestamp(s string) string {
	return timestampColor.Sprint(s)
}

// Disable turns colour off, e.g. when output is not a terminal.
func Disable() {
	color.NoColor = true
}
