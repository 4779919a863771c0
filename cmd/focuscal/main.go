package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"focuscal/internal/config"
	"focuscal/internal/identity"
	appLog "focuscal/internal/log"
	"focuscal/internal/planner"
	"focuscal/internal/source"
	"focuscal/internal/source/graph"
	"focuscal/internal/source/ics"
	"focuscal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetDebug()
	}
	defer appLog.Sync()

	appLog.Info("focuscal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	viewer, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone, falling back to local", err, "timezone", conf.Timezone)
		viewer = time.Local
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"window", conf.Window(),
		"granularity_minutes", conf.GranularityMinutes,
		"max_sessions_per_day", conf.MaxSessionsPerDay,
		"refresh", conf.RefreshCron,
		"participant_count", len(conf.Participants),
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	graphClient := graph.NewClient(conf.GraphBaseURL, os.Getenv("FOCUSCAL_GRAPH_TOKEN"))
	icsSource := ics.NewSource(conf.CacheDir)

	resolver := plannerResolver(conf)
	sourceFor := func(shortName string) source.Source {
		principal := resolver.Principal(shortName)
		for _, pc := range conf.Participants {
			if resolver.Principal(pc.Name) != principal {
				continue
			}
			if pc.Source == "ics" && pc.ICSURL != "" {
				icsSource.AddFeed(principal, pc.ICSURL)
				return icsSource
			}
		}
		return graphClient
	}

	pl := planner.New(planner.Options{
		Window:             conf.Window(),
		GranularityMinutes: conf.GranularityMinutes,
		MaxSessionsPerDay:  conf.MaxSessionsPerDay,
		SessionDuration:    conf.SessionDurationMinutes,
		SessionTitles:      conf.SessionTitles,
		FallbackSlot:       conf.FallbackSlot,
		Viewer:             viewer,
		LegacyOffset:       time.Duration(conf.LegacyFixedOffsetMinutes) * time.Minute,
		Resolver:           resolver,
	}, conf.PrimaryUser, sourceFor(conf.PrimaryUser))

	for _, pc := range conf.Participants {
		if resolver.Principal(pc.Name) == resolver.Principal(conf.PrimaryUser) {
			continue
		}
		pl.AddParticipant(pc.Name, sourceFor(pc.Name))
	}

	if flags.once {
		runOnce(ctx, pl)
		return
	}

	// Periodic refresh is the daemon's decision, not the core's.
	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		appLog.Debug("scheduled refresh firing")
		pl.Refresh(ctx)
	}); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	pl.Refresh(ctx)

	if err := web.StartServer(ctx, conf, pl, sourceFor); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}

	appLog.Info("focuscal exiting")
}

// runOnce performs a single fetch/compute cycle and prints the primary
// schedule as JSON.
func runOnce(ctx context.Context, pl *planner.Planner) {
	select {
	case <-pl.Refresh(ctx):
	case <-ctx.Done():
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pl.Schedule()); err != nil {
		appLog.Error("schedule encode failed", err)
		os.Exit(1)
	}
}

func plannerResolver(conf *config.Config) identity.Resolver {
	return identity.Resolver{Domain: conf.IdentityDomain}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/focuscal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+compute cycle, print the schedule, and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
