package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"staged/internal/config"
	"staged/internal/stage"
	"staged/internal/version"
)

type domainInfo struct {
	Name  string `json:"name"`
	Mode  string `json:"mode"`
	Cache string `json:"cache,omitempty"`
}

type versionPayload struct {
	Tool      string       `json:"tool"`
	Version   string       `json:"version"`
	GitCommit string       `json:"git_commit,omitempty"`
	BuildDate string       `json:"build_date,omitempty"`
	Domains   []domainInfo `json:"domains,omitempty"`
}

var (
	versionFormat   string
	versionShowFull bool
)

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().BoolVar(&versionShowFull, "full", false, "include build metadata and the configured domains")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show stagec build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(versionFormat)
		if format != "pretty" && format != "json" {
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
		p := versionPayload{Tool: "stagec", Version: version.Short()}
		if versionShowFull {
			info := version.Build()
			p.Version = info.Version
			p.GitCommit, p.BuildDate = orUnknown(info.Commit), orUnknown(info.Date)
			domains, err := describeDomains(cmd.Context(), currentConfig())
			if err != nil {
				return err
			}
			p.Domains = domains
		}
		if format == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}
		printVersion(cmd.OutOrStdout(), p)
		return nil
	},
}

// describeDomains builds the engine the config describes and lists what it
// registered.
func describeDomains(ctx context.Context, cfg *config.File) ([]domainInfo, error) {
	e, err := stage.Standard(cfg.Setup())
	if err != nil {
		return nil, err
	}
	defer e.Close(ctx)

	policies := cfg.Policies()
	reg := e.Registry()
	var out []domainInfo
	for _, name := range reg.Domains() {
		_, mode, _ := reg.Lookup(name)
		d := domainInfo{Name: name, Mode: mode.String()}
		if p, ok := policies[name]; ok {
			d.Cache = p.String()
		}
		out = append(out, d)
	}
	return out, nil
}

func printVersion(out io.Writer, p versionPayload) {
	fmt.Fprintf(out, "stagec %s\n", version.Colored())
	if p.GitCommit == "" && p.BuildDate == "" && len(p.Domains) == 0 {
		return
	}
	fmt.Fprintf(out, "commit: %s\n", p.GitCommit)
	fmt.Fprintf(out, "built:  %s\n", p.BuildDate)
	for _, d := range p.Domains {
		fmt.Fprintf(out, "domain: %-11s %-6s %s\n", d.Name, d.Mode, d.Cache)
	}
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
