// Command engine is the process entry point: load config, build the
// engine, connect brokers/data sources, start every configured bot, and
// serve the HTTP control surface until an interrupt signal arrives.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xfactor-labs/tradeforge/internal/config"
	"github.com/xfactor-labs/tradeforge/internal/engine"
	"github.com/xfactor-labs/tradeforge/internal/logging"
)

func main() {
	envPath := flag.String("env", ".env", "path to .env file (optional)")
	configPath := flag.String("config", "config.json", "path to engine config document")
	flag.Parse()

	doc, err := config.Load(*envPath, *configPath)
	if err != nil {
		logging.Errorf("loading config: %v", err)
		os.Exit(1)
	}

	tokenSecret := os.Getenv("TRADEFORGE_JWT_SECRET")
	if tokenSecret == "" {
		tokenSecret = "dev-secret-change-me"
		logging.Warnf("TRADEFORGE_JWT_SECRET not set, using an insecure development default")
	}

	eng, err := engine.New(doc, tokenSecret)
	if err != nil {
		logging.Errorf("constructing engine: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	connectErr := eng.Connect(ctx, doc)
	cancel()
	if connectErr != nil {
		logging.Errorf("connecting brokers/data sources: %v", connectErr)
		os.Exit(1)
	}

	for _, def := range doc.Bots {
		if err := eng.CreateBot(def); err != nil {
			logging.Errorf("creating bot %s: %v", def.ID, err)
		}
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	eng.Supervisor.StartAll(runCtx)
	go eng.RunOptimizerLoop(runCtx, time.Duration(doc.EvaluationIntervalMinutes)*time.Minute)

	go func() {
		logging.Infof("engine: serving control API on %s", doc.APIAddr)
		if err := eng.API.Run(doc.APIAddr); err != nil {
			logging.Errorf("api server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Infof("engine: shutting down")
	runCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	eng.Shutdown(shutdownCtx)
}
