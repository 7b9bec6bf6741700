package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pin-relay/internal/factory"
	"pin-relay/internal/util"
)

const startupLaunchTimeout = 2 * time.Minute

func main() {
	f, err := factory.NewClientFactory()
	if err != nil {
		util.Fatal("Failed to initialize client", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()
	util.Info("Starting PIN relay client",
		util.String("server_url", cfg.ServerURL),
		util.String("target_url", cfg.TargetURL),
		util.String("log_dir", cfg.LogDir),
	)

	launchCtx, cancel := context.WithTimeout(context.Background(), startupLaunchTimeout)
	_, err = f.Sessions().Acquire(launchCtx)
	cancel()
	if err != nil {
		f.Close()
		util.Fatal("Failed to launch browser", util.ErrorField(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		defer signal.Stop(signalChan)

		select {
		case sig := <-signalChan:
			util.Info("Received shutdown signal", util.String("signal", sig.String()))
			stop()
		case <-ctx.Done():
		}
	}()

	if err := f.Run(ctx); err != nil {
		util.Error("Client stopped with error", util.ErrorField(err))
	}
	f.Close()
}
