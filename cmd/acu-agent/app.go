package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/acu-preview/agent/internal/config"
	"github.com/acu-preview/agent/internal/coordinator"
	"github.com/acu-preview/agent/internal/logging"
	"github.com/acu-preview/agent/internal/notifier"
	"github.com/acu-preview/agent/internal/notify"
	"github.com/acu-preview/agent/internal/permission"
)

// runApp hosts a foreground app instance: it connects to the agent, consumes
// the launch URL, runs the one-shot permission flow, and then takes business
// events from stdin.
func runApp() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	log := logging.L("app")

	// Stdin is shared between the permission prompt and the event loop, so
	// everything reads through one buffered reader.
	stdin := bufio.NewReader(os.Stdin)

	var store *permission.Store
	if s, err := permission.OpenStore(cfg.StatePath); err != nil {
		log.Warn("permission state unavailable, grant will not persist", logging.KeyError, err)
	} else {
		store = s
		defer store.Close()
	}

	perms := permission.NewManager(
		store,
		&permission.ConsolePrompter{In: stdin, Out: os.Stdout},
		time.Duration(cfg.PermissionPromptDelayMs)*time.Millisecond,
	)

	var opts []coordinator.Option
	if local, err := notifier.New(appName); err == nil {
		defer local.Shutdown()
		opts = append(opts, coordinator.WithLocalNotifier(local))
	} else if errors.Is(err, notifier.ErrUnsupported) {
		log.Warn("no local notification service, direct display fallback disabled")
	}

	client := coordinator.NewClient(cfg.SocketPath, cfg.AppOrigin, coordinator.Handlers{})
	co := coordinator.New(client, perms, opts...)
	client.SetHandlers(co.BindHandlers(func() {
		fmt.Println("* window focused")
	}))

	go func() {
		if err := client.Run(); err != nil {
			log.Warn("agent connection lost", logging.KeyError, err)
		}
	}()
	defer client.Stop()

	if launchURL != "" {
		stripped, err := co.ConsumeLaunchURL(launchURL)
		if err != nil {
			log.Warn("invalid launch URL", "url", launchURL, logging.KeyError, err)
		} else {
			screen, category := co.View().Current()
			fmt.Printf("* launched at %s (screen=%s category=%s)\n", stripped, screen, category)
		}
	}

	ctx := context.Background()
	if co.RequestPermission(ctx) {
		fmt.Println("* notifications enabled")
	} else {
		fmt.Printf("* notifications disabled (permission %s)\n", co.Permission())
	}

	fmt.Println("Commands: po, bill, prepayment, purchases, view, quit")
	for {
		fmt.Print("> ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("stdin read failed", logging.KeyError, err)
			}
			return
		}

		switch cmd := strings.TrimSpace(line); cmd {
		case "":
		case "quit", "exit":
			return
		case "view":
			screen, category := co.View().Current()
			fmt.Printf("screen=%s category=%s\n", screen, category)
		default:
			kind, ok := notify.ParseKind(cmd)
			if !ok {
				fmt.Printf("unknown command %q\n", cmd)
				continue
			}
			co.NotifyBusinessEvent(ctx, kind)
		}
	}
}
