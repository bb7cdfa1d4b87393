package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tripwire-iot/tripwire"
	"github.com/tripwire-iot/tripwire/internal/config"
	"github.com/tripwire-iot/tripwire/internal/logsink"
	"github.com/tripwire-iot/tripwire/render"
	"github.com/zoobzio/capitan"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "probe":
		err = probeCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("tripwire %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to configuration file (defaults apply when empty)")
	endpoint := fs.String("endpoint", "", "Override transport.endpoint")
	tz := fs.String("tz", "Local", "Time zone for \"Last updated\" times")
	quiet := fs.Bool("quiet", false, "Do not print the dashboard on every update")
	verbose := fs.Bool("verbose", false, "Log raw frames and every commit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath, *endpoint)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("load time zone: %w", err)
	}

	logsink.Install(log.New(os.Stderr, "", log.LstdFlags), *verbose)
	defer capitan.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	if !*quiet {
		svc.engine.Subscribe(func(s tripwire.Snapshot) {
			_ = render.Text(os.Stdout, s, loc)
		})
	}

	if err := svc.engine.Start(ctx); err != nil {
		return err
	}

	script := func() tripwire.Script { return tripwire.DefaultScript(nil) }
	return serve(ctx, cfg.Metrics.Addr, newServer(ctx, svc.engine, svc.gatherer, loc, script))
}

func probeCommand(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to configuration file (defaults apply when empty)")
	endpoint := fs.String("endpoint", "", "Override transport.endpoint")
	settle := fs.Duration("settle", 2*time.Second, "How long to wait for the transport before firing the script")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath, *endpoint)
	if err != nil {
		return err
	}

	logsink.Install(log.New(os.Stderr, "", log.LstdFlags), false)
	defer capitan.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.engine.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(*settle):
	}

	driver := tripwire.NewDriver(svc.engine, tripwire.DefaultScript(nil))
	if err := driver.Run(ctx); err != nil {
		return fmt.Errorf("synthetic run: %w", err)
	}
	if err := svc.engine.Settle(ctx); err != nil {
		return err
	}
	if err := render.Text(os.Stdout, svc.engine.Snapshot(), time.Local); err != nil {
		return err
	}

	// Give the last step's diagnostic window time to lapse.
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(svc.engine.DiagnosticExpiry() + 100*time.Millisecond):
	}
	if err := svc.engine.Settle(ctx); err != nil {
		return err
	}
	return render.Text(os.Stdout, svc.engine.Snapshot(), time.Local)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./tripwire.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := config.Load(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func loadConfig(path, endpoint string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		read, err := config.Read(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = read
	}
	if endpoint != "" {
		cfg.Transport.Endpoint = endpoint
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printUsage() {
	fmt.Printf(`tripwire: live sensor dashboard engine

Usage:
  tripwire <command> [flags]

Commands:
  run        Connect to the sensor feed, print the dashboard and serve /snapshot, /cards and /metrics
  probe      Connect, play the synthetic test sequence once and print the resulting dashboard
  validate   Load and validate a config file without connecting

Examples:
  tripwire run -config ./tripwire.yaml
  tripwire run -endpoint wss://sensors.local:6789 -tz Europe/Berlin
  tripwire probe -endpoint ws://localhost:6789
  tripwire validate -config ./tripwire.yaml
`)
}
