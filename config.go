package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/apologies/server"
)

type Config struct {
	bind       string
	configFile string
	logFile    string
	port       int
	prefix     string
	profile    bool
	tlsCert    string
	tlsKey     string
	verbose    bool
	version    bool

	messageScope string
	closeTimeout time.Duration

	websocketLimit        int
	registeredPlayerLimit int
	totalGameLimit        int
	inProgressGameLimit   int

	websocketIdleThresh     time.Duration
	websocketInactiveThresh time.Duration
	playerIdleThresh        time.Duration
	playerInactiveThresh    time.Duration
	gameIdleThresh          time.Duration
	gameInactiveThresh      time.Duration
	gameRetentionThresh     time.Duration

	websocketCheckDelay  time.Duration
	websocketCheckPeriod time.Duration
	playerCheckDelay     time.Duration
	playerCheckPeriod    time.Duration
	gameCheckDelay       time.Duration
	gameCheckPeriod      time.Duration
	obsoleteCheckDelay   time.Duration
	obsoleteCheckPeriod  time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}

	limits := []struct {
		name  string
		value int
	}{
		{"websocket-limit", c.websocketLimit},
		{"registered-player-limit", c.registeredPlayerLimit},
		{"total-game-limit", c.totalGameLimit},
		{"in-progress-game-limit", c.inProgressGameLimit},
	}
	for _, limit := range limits {
		if limit.value < 1 {
			return fmt.Errorf("invalid --%s (must be positive): %d", limit.name, limit.value)
		}
	}

	thresholds := []struct {
		name           string
		idle, inactive time.Duration
	}{
		{"websocket", c.websocketIdleThresh, c.websocketInactiveThresh},
		{"player", c.playerIdleThresh, c.playerInactiveThresh},
		{"game", c.gameIdleThresh, c.gameInactiveThresh},
	}
	for _, t := range thresholds {
		if t.idle <= 0 || t.inactive <= 0 {
			return fmt.Errorf("invalid --%s thresholds (must be positive)", t.name)
		}
		if t.idle >= t.inactive {
			return fmt.Errorf("--%s-idle-thresh must be below --%s-inactive-thresh", t.name, t.name)
		}
	}

	cadences := []struct {
		name          string
		delay, period time.Duration
	}{
		{"idle-websocket-check", c.websocketCheckDelay, c.websocketCheckPeriod},
		{"idle-player-check", c.playerCheckDelay, c.playerCheckPeriod},
		{"idle-game-check", c.gameCheckDelay, c.gameCheckPeriod},
		{"obsolete-game-check", c.obsoleteCheckDelay, c.obsoleteCheckPeriod},
	}
	for _, cadence := range cadences {
		if cadence.delay < 0 || cadence.period <= 0 {
			return fmt.Errorf("invalid --%s-delay/--%s-period", cadence.name, cadence.name)
		}
	}

	if c.gameRetentionThresh <= 0 {
		return errors.New("invalid --game-retention-thresh (must be positive)")
	}
	if c.closeTimeout <= 0 {
		return errors.New("invalid --close-timeout (must be positive)")
	}
	if c.messageScope != server.ScopeServer && c.messageScope != server.ScopeGame {
		return fmt.Errorf("invalid --message-scope (must be %q or %q): %q",
			server.ScopeServer, server.ScopeGame, c.messageScope)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("APOLOGIES")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "apologies",
		Short:         "A websocket coordination server for the Apologies board game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()

			// config file values rank below flags and environment
			if cfg.configFile != "" {
				v.SetConfigFile(cfg.configFile)
				if err := v.ReadInConfig(); err != nil {
					return err
				}
				fs.VisitAll(func(f *pflag.Flag) {
					if !f.Changed && v.IsSet(f.Name) {
						_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
					}
				})
			}

			if err := cfg.validate(); err != nil {
				return err
			}

			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: APOLOGIES_BIND)")
	fs.DurationVar(&cfg.closeTimeout, "close-timeout", 10*time.Second, "grace period for flushing websockets at shutdown (env: APOLOGIES_CLOSE_TIMEOUT)")
	fs.StringVar(&cfg.configFile, "config", "", "path to optional config file (env: APOLOGIES_CONFIG)")
	fs.DurationVar(&cfg.gameIdleThresh, "game-idle-thresh", 10*time.Minute, "time before a quiet game is marked idle (env: APOLOGIES_GAME_IDLE_THRESH)")
	fs.DurationVar(&cfg.gameInactiveThresh, "game-inactive-thresh", 20*time.Minute, "time before a quiet game is cancelled (env: APOLOGIES_GAME_INACTIVE_THRESH)")
	fs.DurationVar(&cfg.gameRetentionThresh, "game-retention-thresh", 48*time.Hour, "time finished games are retained (env: APOLOGIES_GAME_RETENTION_THRESH)")
	fs.DurationVar(&cfg.gameCheckDelay, "idle-game-check-delay", 5*time.Minute, "delay before the first idle game check (env: APOLOGIES_IDLE_GAME_CHECK_DELAY)")
	fs.DurationVar(&cfg.gameCheckPeriod, "idle-game-check-period", 2*time.Minute, "time between idle game checks (env: APOLOGIES_IDLE_GAME_CHECK_PERIOD)")
	fs.DurationVar(&cfg.playerCheckDelay, "idle-player-check-delay", 5*time.Minute, "delay before the first idle player check (env: APOLOGIES_IDLE_PLAYER_CHECK_DELAY)")
	fs.DurationVar(&cfg.playerCheckPeriod, "idle-player-check-period", 2*time.Minute, "time between idle player checks (env: APOLOGIES_IDLE_PLAYER_CHECK_PERIOD)")
	fs.DurationVar(&cfg.websocketCheckDelay, "idle-websocket-check-delay", 5*time.Minute, "delay before the first idle websocket check (env: APOLOGIES_IDLE_WEBSOCKET_CHECK_DELAY)")
	fs.DurationVar(&cfg.websocketCheckPeriod, "idle-websocket-check-period", 2*time.Minute, "time between idle websocket checks (env: APOLOGIES_IDLE_WEBSOCKET_CHECK_PERIOD)")
	fs.IntVar(&cfg.inProgressGameLimit, "in-progress-game-limit", 25, "maximum number of advertised plus started games (env: APOLOGIES_IN_PROGRESS_GAME_LIMIT)")
	fs.StringVar(&cfg.logFile, "logfile", "", "file to log to, in addition to stdout (env: APOLOGIES_LOGFILE)")
	fs.StringVar(&cfg.messageScope, "message-scope", server.ScopeServer, "player message audience, either server or game (env: APOLOGIES_MESSAGE_SCOPE)")
	fs.DurationVar(&cfg.obsoleteCheckDelay, "obsolete-game-check-delay", 5*time.Minute, "delay before the first obsolete game check (env: APOLOGIES_OBSOLETE_GAME_CHECK_DELAY)")
	fs.DurationVar(&cfg.obsoleteCheckPeriod, "obsolete-game-check-period", 5*time.Minute, "time between obsolete game checks (env: APOLOGIES_OBSOLETE_GAME_CHECK_PERIOD)")
	fs.DurationVar(&cfg.playerIdleThresh, "player-idle-thresh", 15*time.Minute, "time before a quiet player is marked idle (env: APOLOGIES_PLAYER_IDLE_THRESH)")
	fs.DurationVar(&cfg.playerInactiveThresh, "player-inactive-thresh", 30*time.Minute, "time before a quiet player is unregistered (env: APOLOGIES_PLAYER_INACTIVE_THRESH)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: APOLOGIES_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: APOLOGIES_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: APOLOGIES_PROFILE)")
	fs.IntVar(&cfg.registeredPlayerLimit, "registered-player-limit", 100, "maximum number of registered players (env: APOLOGIES_REGISTERED_PLAYER_LIMIT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: APOLOGIES_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: APOLOGIES_TLS_KEY)")
	fs.IntVar(&cfg.totalGameLimit, "total-game-limit", 1000, "maximum number of tracked games, finished included (env: APOLOGIES_TOTAL_GAME_LIMIT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: APOLOGIES_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: APOLOGIES_VERSION)")
	fs.IntVar(&cfg.websocketLimit, "websocket-limit", 100, "maximum number of concurrent websockets (env: APOLOGIES_WEBSOCKET_LIMIT)")
	fs.DurationVar(&cfg.websocketIdleThresh, "websocket-idle-thresh", 2*time.Minute, "time before a quiet unbound websocket is marked idle (env: APOLOGIES_WEBSOCKET_IDLE_THRESH)")
	fs.DurationVar(&cfg.websocketInactiveThresh, "websocket-inactive-thresh", 5*time.Minute, "time before a quiet unbound websocket is closed (env: APOLOGIES_WEBSOCKET_INACTIVE_THRESH)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("apologies v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
