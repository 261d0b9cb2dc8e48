package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"staged/internal/config"
	"staged/internal/trace"
)

// setupTracing lays the --trace* flags over the [trace] section of cfg and
// installs the session tracer on the command context. The returned cleanup
// closes the session; a failed command also gets the ring written out.
func setupTracing(cmd *cobra.Command, cfg *config.File) (func(failed bool), error) {
	tc, err := cfg.TraceConfig()
	if err != nil {
		return nil, err
	}
	flags := cmd.Root().PersistentFlags()

	if flags.Changed("trace") {
		tc.OutputPath, _ = flags.GetString("trace")
		// явный вывод без уровня включает фазы
		if tc.Level == trace.LevelOff {
			tc.Level = trace.LevelPhase
		}
	}
	overrides := []struct {
		flag  string
		apply func(string) error
	}{
		{"trace-level", func(s string) (err error) { tc.Level, err = trace.ParseLevel(s); return }},
		{"trace-mode", func(s string) (err error) { tc.Mode, err = trace.ParseMode(s); return }},
		{"trace-format", func(s string) (err error) { tc.Format, err = trace.ParseFormat(s); return }},
	}
	for _, o := range overrides {
		if !flags.Changed(o.flag) {
			continue
		}
		v, _ := flags.GetString(o.flag)
		if err := o.apply(v); err != nil {
			return nil, fmt.Errorf("--%s: %w", o.flag, err)
		}
	}
	if flags.Changed("trace-ring-size") {
		tc.RingSize, _ = flags.GetInt("trace-ring-size")
	}
	tc.Heartbeat, _ = flags.GetDuration("trace-heartbeat")

	session, err := trace.Open(tc)
	if err != nil {
		return nil, err
	}
	ctx := trace.WithTracer(cmd.Context(), session.Tracer())
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	return func(failed bool) {
		if err := session.Close(failed); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: %v\n", err)
		}
	}, nil
}
