package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type toggleMode string

const (
	toggleAuto toggleMode = "auto"
	toggleOn   toggleMode = "on"
	toggleOff  toggleMode = "off"
)

// readToggle parses an auto|on|off flag value.
func readToggle(flag, value string) (toggleMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return toggleAuto, nil
	case "on":
		return toggleOn, nil
	case "off":
		return toggleOff, nil
	default:
		return "", fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
	}
}

// enabled resolves auto to whether stdout is a terminal.
func enabled(mode toggleMode) bool {
	switch mode {
	case toggleOn:
		return true
	case toggleOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

func applyColorFlag(cmd *cobra.Command) error {
	raw, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	mode, err := readToggle("color", raw)
	if err != nil {
		return err
	}
	color.NoColor = !enabled(mode) || (mode == toggleAuto && os.Getenv("NO_COLOR") != "")
	return nil
}
