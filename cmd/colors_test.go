package cmd

import (
	"testing"

	"github.com/fatih/color"
)

func TestFormatBool(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	if got := formatBool(true); got != "yes" {
		t.Errorf("formatBool(true) = %q, want yes", got)
	}
	if got := formatBool(false); got != "no" {
		t.Errorf("formatBool(false) = %q, want no", got)
	}
}
