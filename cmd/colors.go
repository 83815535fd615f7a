package cmd

import "github.com/fatih/color"

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func formatBool(v bool) string {
	if v {
		return colorSuccess("yes")
	}
	return colorError("no")
}
