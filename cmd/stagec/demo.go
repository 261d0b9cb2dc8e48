package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const demoConfig = `# stagec settings
[trace]
level = "off"

[compile]
strict = ["arith"]

[cache.seq]
idle = "10m"
max_entries = 256

[cache."seq.reduce"]
idle = "2m"
max_entries = 64
`

var demoWithConfig bool

func init() {
	demoCmd.Flags().BoolVar(&demoWithConfig, "config-file", false, "also write a sample stagec.toml")
}

var demoCmd = &cobra.Command{
	Use:   "demo <dir>",
	Short: "Write sample recordings into dir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range samples() {
			rec, err := s.record()
			if err != nil {
				return err
			}
			path := filepath.Join(dir, s.name+".mp")
			if err := writeRecording(path, rec); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s (%s, %d nodes, %d runs)\n",
				color.GreenString("wrote"), path, rec.Domain, len(rec.Nodes), len(rec.Runs))
		}
		if demoWithConfig {
			path := filepath.Join(dir, "stagec.toml")
			if err := os.WriteFile(path, []byte(demoConfig), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", color.GreenString("wrote"), path)
		}
		return nil
	},
}
