package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"

	"github.com/acu-preview/agent/internal/agent"
	"github.com/acu-preview/agent/internal/config"
	"github.com/acu-preview/agent/internal/ipc"
	"github.com/acu-preview/agent/internal/logging"
	"github.com/acu-preview/agent/internal/notifier"
	"github.com/acu-preview/agent/internal/push"
	"github.com/acu-preview/agent/internal/secmem"
)

// appName is what the desktop notification service shows as the sender.
const appName = "Acu Preview"

func runAgent() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", e)
		}
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, nil)
	log := logging.L("main")

	var agentOpts []agent.Option

	n, err := notifier.New(appName)
	if err != nil {
		if !errors.Is(err, notifier.ErrUnsupported) {
			log.Error("failed to connect to notification service", logging.KeyError, err)
			os.Exit(1)
		}
		// Display attempts short-circuit but the IPC surface stays up
		log.Warn("platform notification service unavailable, display disabled")
		agentOpts = append(agentOpts, agent.WithUnsupportedNotifier())
	}

	if opener := agent.NewOpener(cfg.OpenCommand); opener != nil {
		agentOpts = append(agentOpts, agent.WithOpener(opener))
	} else {
		log.Warn("no open command configured, clicks with no app instance will be dropped")
	}

	var a *agent.Agent
	registry := agent.NewRegistry(cfg.SocketPath, func(s *agent.Session, env *ipc.Envelope) {
		a.OnClientMessage(s, env)
	})
	a = agent.New(cfg.AppOrigin, n, registry, agentOpts...)

	var g run.Group

	stopChan := make(chan struct{})
	g.Add(func() error {
		return registry.Listen(stopChan)
	}, func(error) {
		close(stopChan)
	})

	g.Add(func() error {
		a.Run()
		return nil
	}, func(error) {
		n.Shutdown()
	})

	if cfg.PushURL != "" {
		pc := push.New(&push.Config{GatewayURL: cfg.PushURL, Token: secmem.New(cfg.PushToken)}, a.HandlePush)
		g.Add(func() error {
			pc.Start()
			return nil
		}, func(error) {
			pc.Stop()
		})
	} else {
		log.Info("no push gateway configured, only app-requested notifications will be shown")
	}

	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	log.Info("agent starting",
		"version", version,
		"socket", cfg.SocketPath,
		logging.KeyClientOrigin, cfg.AppOrigin,
	)

	if err := g.Run(); err != nil {
		var sig run.SignalError
		if errors.As(err, &sig) {
			log.Info("shutting down", "signal", sig.Signal.String())
			return
		}
		log.Error("agent exited", logging.KeyError, err)
		os.Exit(1)
	}
}
