package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"ticksched/internal/app"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (json or yaml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	// Config hot reload: watcher parses+validates, the subscription queues the
	// result for the driving loop to apply.
	cfgm := a.ConfigManager()
	go func() { _ = cfgm.Watch(ctx) }()
	sub := cfgm.Subscribe(1)
	defer cfgm.Unsubscribe(sub)
	go func() {
		for cfg := range sub {
			a.ApplyConfig(cfg)
		}
	}()

	// Readiness for systemd units with Type=notify; no-op elsewhere.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	err = a.Run(ctx)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
