// Command doasim plays Dead or Alive matches offline with bot agents and prints the result.
package main

import (
	"os"
	"strings"
	"time"

	"deadoralive/internal/bot"
	"deadoralive/internal/config"
	"deadoralive/internal/logging"
	"deadoralive/internal/sim"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	players    int
	seed       int64
	dataDir    string
	maxSeconds int
	level      string
	roster     string
	verbose    bool
	pretty     bool
}

type report struct {
	RunID          string   `json:"run_id"`
	Success        bool     `json:"success"`
	Winners        []string `json:"winners"`
	Stages         int      `json:"stages"`
	Eliminated     []string `json:"eliminated"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	TimedOut       bool     `json:"timed_out"`
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "doasim",
		Short:        "Simulate a Dead or Alive match with bot players",
		Example:      "doasim --players 8 --seed 42 --data-dir data/deadoralive",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.players, "players", 4, "number of bot players")
	flags.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed for bots and death-room rolls")
	flags.StringVar(&opts.dataDir, "data-dir", "", "data directory (overrides DOA_DATA_DIR)")
	flags.IntVar(&opts.maxSeconds, "max-seconds", int(sim.DefaultMaxDuration.Seconds()), "virtual seconds before the run is abandoned")
	flags.StringVar(&opts.level, "level", "runner", "bot strategy: idle, wander or runner")
	flags.StringVar(&opts.roster, "roster", "", "JSON file with bot identities")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output")
	flags.BoolVar(&opts.pretty, "pretty", false, "human readable logs")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	logger := logging.New(cmd.ErrOrStderr(), level, opts.pretty)

	environ := doaEnviron(os.Environ())
	if opts.dataDir != "" {
		environ["DOA_DATA_DIR"] = opts.dataDir
	}
	settings, err := config.Load(environ)
	if err != nil {
		return err
	}
	botLevel, err := bot.ParseBotLevel(opts.level)
	if err != nil {
		return err
	}
	roster, err := bot.LoadRoster(opts.roster)
	if err != nil {
		return err
	}

	s, err := sim.New(logger.WithField("seed", opts.seed), settings, roster, sim.Config{
		Players:     opts.players,
		Seed:        opts.seed,
		Level:       botLevel,
		MaxDuration: time.Duration(opts.maxSeconds) * time.Second,
	})
	if err != nil {
		return err
	}
	res, err := s.Run(cmd.Context())
	if err != nil {
		return eris.Wrap(err, "simulation failed")
	}

	out := report{
		RunID:          res.RunID,
		Success:        res.Success,
		Winners:        nonNil(res.Winners),
		Stages:         res.Stages,
		Eliminated:     nonNil(res.Eliminated),
		ElapsedSeconds: res.Elapsed.Seconds(),
		TimedOut:       res.TimedOut,
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// doaEnviron keeps the DOA_* variables from a KEY=VALUE list.
func doaEnviron(kv []string) map[string]string {
	environ := make(map[string]string)
	for _, entry := range kv {
		key, value, ok := strings.Cut(entry, "=")
		if ok && strings.HasPrefix(key, "DOA_") {
			environ[key] = value
		}
	}
	return environ
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
