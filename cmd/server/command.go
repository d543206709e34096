package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/tourney-draft-backend/internal/logger"
)

func newCmd(cfg *configFlags) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TOURNEY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "tourney-draft",
		Short:         "Pick/ban draft and live score server for osu! tournament broadcasts.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := logger.New(cfg.Logger())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return run(cmd.Context(), cfg.Config, log, cfg.originPatterns)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	d := cfg.Config
	fs.StringVarP(&cfg.Bind, "bind", "b", d.Bind, "address to bind to (env: TOURNEY_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", d.Port, "port to listen on (env: TOURNEY_PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", d.LogLevel, "debug, info, warn or error (env: TOURNEY_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", d.LogFormat, "json or console (env: TOURNEY_LOG_FORMAT)")
	fs.StringSliceVar(&cfg.originPatterns, "origin", nil, "extra websocket origin patterns (env: TOURNEY_ORIGIN)")

	fs.StringVar(&cfg.TelemetryURL, "telemetry-url", d.TelemetryURL, "gosumemory base url (env: TOURNEY_TELEMETRY_URL)")
	fs.BoolVar(&cfg.TelemetryEnabled, "telemetry", d.TelemetryEnabled, "poll gosumemory (env: TOURNEY_TELEMETRY)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", d.PollInterval, "telemetry poll period (env: TOURNEY_POLL_INTERVAL)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", d.RequestTimeout, "telemetry status request timeout (env: TOURNEY_REQUEST_TIMEOUT)")
	fs.DurationVar(&cfg.ShowcaseTimeout, "showcase-timeout", d.ShowcaseTimeout, "mappool showcase request timeout (env: TOURNEY_SHOWCASE_TIMEOUT)")
	fs.DurationVar(&cfg.FailureBackoff, "failure-backoff", d.FailureBackoff, "pause after a failed telemetry request (env: TOURNEY_FAILURE_BACKOFF)")
	fs.DurationVar(&cfg.StartupGrace, "startup-grace", d.StartupGrace, "delay before the first telemetry request (env: TOURNEY_STARTUP_GRACE)")
	fs.IntVar(&cfg.ShowcaseCacheSize, "showcase-cache-size", d.ShowcaseCacheSize, "showcase entries kept in memory (env: TOURNEY_SHOWCASE_CACHE_SIZE)")

	fs.IntVar(&cfg.BansPerTeam, "bans-per-team", d.BansPerTeam, "default bans per team, 0-2 (env: TOURNEY_BANS_PER_TEAM)")
	fs.StringVar(&cfg.BanOrder, "ban-order", d.BanOrder, "AABB, ABAB, ABBA or empty (env: TOURNEY_BAN_ORDER)")
	fs.StringVar(&cfg.RollWinner, "roll-winner", d.RollWinner, "team that bans first, red or blue (env: TOURNEY_ROLL_WINNER)")
	fs.BoolVar(&cfg.AutoAdvance, "auto-advance", d.AutoAdvance, "mark gameplay ready after a pick (env: TOURNEY_AUTO_ADVANCE)")
	fs.DurationVar(&cfg.AutoAdvanceDelay, "auto-advance-delay", d.AutoAdvanceDelay, "delay between a pick and gameplay ready (env: TOURNEY_AUTO_ADVANCE_DELAY)")

	fs.StringVar(&cfg.DatabaseURL, "database-url", d.DatabaseURL, "postgres dsn; empty keeps choices in memory (env: TOURNEY_DATABASE_URL)")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", d.StoreTimeout, "timeout for choice log writes (env: TOURNEY_STORE_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("tourney-draft v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
