package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cakery-bench/internal/api"
	"cakery-bench/internal/config"
	"cakery-bench/internal/events"
	"cakery-bench/internal/logger"
	"cakery-bench/internal/scenario"
	"cakery-bench/internal/transport"
)

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd.Flags())
	_ = viper.BindPFlags(runCmd.Flags())
}

func addRunFlags(f *pflag.FlagSet) {
	f.String("preset", "", "Preset scenario (see 'cakery-bench presets')")
	f.String("backend", "", "Backend kind: binary, text, http, script, memory")
	f.Duration("duration", 0, "Run time, e.g. 30s or 5m")
	f.Uint64("requests", 0, "Stop after this many operations instead of after --duration")
	f.Int("workers", 0, "Number of workers, one driver each")
	f.Int("nodes", 0, "Nodes of the memory backend")
	f.Int("entries", 0, "Number of dataset entries (N)")
	f.Int("payload-size", 0, "Size of each entry's document string")
	f.String("key-suffix", "", "Suffix appended to every key")
	f.Int("request-sleep-ms", 0, "Pause after every operation, in milliseconds")
	f.Float64("max-rps", 0, "Cap on operations per second across all workers (0 = unlimited)")
	f.Int64("seed", 0, "Key selection seed (0 = random)")
	f.Bool("chaos", false, "Inject node failures (memory backend only)")

	f.String("binary-addr", "", "host:port of the binary protocol server")
	f.String("binary-password", "", "Password of the binary protocol server")
	f.String("text-addr", "", "host:port of the text protocol server")
	f.String("http-uri", "", "Base URI of the REST or OData endpoint")
	f.String("http-cache", "", "Cache name on the HTTP endpoint")
	f.String("script-dir", "", "Directory holding the search script")
	f.String("script-name", "", "File name of the search script")
	f.String("script-env", "", "Environment for the search script, as 'K=V;K=V'")
	f.Int("query-set-size", 0, "Number of queries the search script knows")

	f.String("addr", "", "Serve status, metrics and events on this address while running")
	f.Bool("json", false, "Print the result as JSON instead of a text report")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load scenario",
	Long: `Run a load scenario against a backend and print a report.

Examples:
  cakery-bench run --preset memory --duration 10s
  cakery-bench run --preset binary --binary-addr 10.0.0.5:6379 --workers 32
  cakery-bench run --backend http --http-uri http://cache:8080/rest --requests 100000
  cakery-bench run --config scenario.yaml --addr :9090
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildScenarioConfig(viper.GetViper())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runScenario(ctx, cfg, viper.GetString("addr"), viper.GetBool("json"), cmd.OutOrStdout())
	},
}

// buildScenarioConfig layers flags and environment over the config file,
// the preset and the defaults.
func buildScenarioConfig(v *viper.Viper) (scenario.Config, error) {
	var cfg scenario.Config
	preset := v.GetString("preset")

	if path := v.GetString("config"); path != "" {
		fileConfig, err := config.LoadFile(path)
		if err != nil {
			return cfg, err
		}
		if preset != "" {
			fileConfig.Scenario.Preset = preset
		}
		if err := fileConfig.Validate(); err != nil {
			return cfg, errors.Wrap(err, "invalid config file")
		}
		if cfg, err = fileConfig.ToScenarioConfig(); err != nil {
			return cfg, errors.Wrap(err, "invalid config file")
		}
	} else if preset != "" {
		p, ok := scenario.GetPreset(preset)
		if !ok {
			return cfg, errors.Errorf("unknown preset %q (available: %v)", preset, scenario.ListPresets())
		}
		cfg = p
	} else {
		cfg = scenario.DefaultConfig()
	}

	if v.IsSet("backend") {
		kind, err := transport.ParseKind(v.GetString("backend"))
		if err != nil {
			return cfg, err
		}
		cfg.Backend.Kind = kind
		if kind != transport.KindMemory {
			cfg.NodeCount = 0
		} else if cfg.NodeCount == 0 {
			cfg.NodeCount = scenario.DefaultConfig().NodeCount
		}
	}
	if v.IsSet("duration") {
		cfg.Duration = v.GetDuration("duration")
	}
	if v.IsSet("requests") {
		cfg.Requests = v.GetUint64("requests")
	}
	if v.IsSet("workers") {
		cfg.Workers = v.GetInt("workers")
	}
	if v.IsSet("nodes") {
		cfg.NodeCount = v.GetInt("nodes")
	}
	if v.IsSet("entries") {
		cfg.Entries = v.GetInt("entries")
	}
	if v.IsSet("payload-size") {
		cfg.PayloadSize = v.GetInt("payload-size")
	}
	if v.IsSet("key-suffix") {
		cfg.KeySuffix = v.GetString("key-suffix")
	}
	if v.IsSet("request-sleep-ms") {
		cfg.RequestSleep = time.Duration(v.GetInt("request-sleep-ms")) * time.Millisecond
	}
	if v.IsSet("max-rps") {
		cfg.MaxRPS = v.GetFloat64("max-rps")
	}
	if v.IsSet("seed") {
		cfg.Seed = v.GetInt64("seed")
	}
	if v.IsSet("chaos") {
		cfg.EnableChaos = v.GetBool("chaos")
	}

	if v.IsSet("binary-addr") {
		cfg.Backend.Binary.Addr = v.GetString("binary-addr")
	}
	if v.IsSet("binary-password") {
		cfg.Backend.Binary.Password = v.GetString("binary-password")
	}
	if v.IsSet("text-addr") {
		cfg.Backend.Text.Addr = v.GetString("text-addr")
	}
	if v.IsSet("http-uri") {
		cfg.Backend.HTTP.URI = v.GetString("http-uri")
	}
	if v.IsSet("http-cache") {
		cfg.Backend.HTTP.Cache = v.GetString("http-cache")
	}
	if v.IsSet("script-dir") {
		cfg.Backend.Script.Dir = v.GetString("script-dir")
	}
	if v.IsSet("script-name") {
		cfg.Backend.Script.Name = v.GetString("script-name")
	}
	if v.IsSet("script-env") {
		cfg.Backend.Script.EnvVars = v.GetString("script-env")
	}
	if v.IsSet("query-set-size") {
		cfg.Backend.Script.QuerySetSize = v.GetInt("query-set-size")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := cfg.Backend.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runScenario runs cfg once, serving status on addr if set.
func runScenario(ctx context.Context, cfg scenario.Config, addr string, asJSON bool, out io.Writer) error {
	engine := scenario.New(cfg)

	var server *api.Server
	if addr != "" {
		bus := events.NewBus()
		defer bus.Close()
		engine.SetEventBus(bus)

		server = api.NewServer(addr, bus)
		server.Attach(engine)

		serverCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := server.Start(serverCtx); err != nil {
				logger.Error("", "API server: %v", err)
			}
		}()
	}

	logger.Info("", "Scenario %s: backend=%s workers=%d entries=%d duration=%v requests=%d",
		cfg.Name, cfg.Backend.Kind, cfg.Workers, cfg.Entries, cfg.Duration, cfg.Requests)

	result, err := engine.Run(ctx)
	if result == nil {
		return err
	}
	if server != nil {
		server.SetResult(result)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintln(out, result.Report())
	}
	return err
}
