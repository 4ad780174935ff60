package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"estoque-vendas/internal/config"
	"estoque-vendas/internal/logger"
	"estoque-vendas/internal/offline"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const usage = `Usage: pdv-sync [flags] <command>

Commands:
  run               deliver queued sales and keep watching the API
  enqueue <file>    submit a sale from a JSON file, queueing it when offline
  pending           list queued sales
  deadletters       list sales the server refused

Flags:
`

func loadConfig(args []string) (*config.SyncConfig, []string, error) {
	flags := pflag.NewFlagSet("pdv-sync", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	flags.String("server", "", "base URL of the estoque-vendas API")
	flags.String("db", "", "path of the local pending sales database")
	flags.Int("interval", 0, "seconds between sync cycles")
	flags.Int("probe", 0, "seconds between connectivity probes")
	flags.Int("timeout", 0, "seconds before a request to the API is abandoned")
	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	bindings := map[string]string{
		"SYNC_SERVER_URL":           "server",
		"SYNC_DB_PATH":              "db",
		"SYNC_INTERVAL_SECONDS":     "interval",
		"SYNC_PROBE_SECONDS":        "probe",
		"SYNC_HTTP_TIMEOUT_SECONDS": "timeout",
	}
	for key, name := range bindings {
		// only flags given on the command line override the environment
		if flag := flags.Lookup(name); flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, nil, err
			}
		}
	}

	return config.LoadSync(v), flags.Args(), nil
}

func run(ctx context.Context, cfg *config.SyncConfig, queue offline.Queue, client *offline.Client, log *zap.Logger) error {
	syncer := offline.NewSyncer(queue, client, log, cfg.Interval)
	watcher := offline.NewWatcher(client, log, cfg.ProbeInterval, syncer.Notify)

	log.Info("Sync agent started",
		zap.String("server", cfg.ServerURL),
		zap.String("db", cfg.DBPath),
		zap.Duration("interval", cfg.Interval),
		zap.Duration("probe", cfg.ProbeInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncer.Run(ctx) })
	g.Go(func() error { return watcher.Run(ctx) })
	return g.Wait()
}

func enqueue(ctx context.Context, cfg *config.SyncConfig, path string, queue offline.Queue, client *offline.Client, log *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var payload offline.SalePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid sale file %s: %w", path, err)
	}

	result, err := offline.NewSyncer(queue, client, log, cfg.Interval).Submit(ctx, payload)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cfg, args, err := loadConfig(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue, err := offline.OpenSQLiteQueue(ctx, cfg.DBPath, log)
	if err != nil {
		log.Fatal("Failed to open pending sales database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer queue.Close()

	client := offline.NewClient(cfg.ServerURL, cfg.HTTPTimeout)

	switch args[0] {
	case "run":
		err = run(ctx, cfg, queue, client, log)
	case "enqueue":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		err = enqueue(ctx, cfg, args[1], queue, client, log)
	case "pending":
		var pending []offline.PendingSale
		if pending, err = queue.Pending(ctx); err == nil {
			err = printJSON(pending)
		}
	case "deadletters":
		var letters []offline.DeadLetter
		if letters, err = queue.DeadLetters(ctx); err == nil {
			err = printJSON(letters)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		os.Exit(2)
	}

	if err != nil {
		log.Error("Command failed", zap.String("command", args[0]), zap.Error(err))
		queue.Close()
		log.Sync()
		os.Exit(1)
	}
}
