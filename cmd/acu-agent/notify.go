package main

import (
	"fmt"
	"os"
	"time"

	"github.com/acu-preview/agent/internal/config"
	"github.com/acu-preview/agent/internal/coordinator"
	"github.com/acu-preview/agent/internal/logging"
	"github.com/acu-preview/agent/internal/notify"
)

// notifyEvent is the one-shot dispatch path: connect, show the template for
// the given kind, report delivery, exit. Meant for testing a running agent.
func notifyEvent(kindArg string) {
	kind, ok := notify.ParseKind(kindArg)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown event kind %q (want po, bill, prepayment, or purchases)\n", kindArg)
		os.Exit(1)
	}
	req, ok := notify.BusinessEvent(kind)
	if !ok {
		fmt.Fprintf(os.Stderr, "No notification template for %q\n", kindArg)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)

	client := coordinator.NewClient(cfg.SocketPath, cfg.AppOrigin, coordinator.Handlers{})
	go client.Run()
	defer client.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for !client.Connected() {
		if time.Now().After(deadline) {
			fmt.Fprintln(os.Stderr, "Could not connect to agent. Is 'acu-agent run' running?")
			os.Exit(1)
		}
		time.Sleep(50 * time.Millisecond)
	}

	result, err := client.ShowNotification(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Show failed: %v\n", err)
		os.Exit(1)
	}
	if !result.Delivered {
		fmt.Fprintln(os.Stderr, "Agent could not display the notification")
		os.Exit(1)
	}
	fmt.Printf("Delivered %s notification (id %s)\n", kind, result.NotificationID)
}
