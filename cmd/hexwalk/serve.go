package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/san-kum/hexwalk/internal/logging"
	"github.com/san-kum/hexwalk/internal/simserver"
	"github.com/spf13/cobra"
)

const defaultServePort = 19997

func runServe(cmd *cobra.Command, args []string) error {
	port := defaultServePort
	if len(args) == 1 {
		p, err := strconv.Atoi(args[0])
		if err != nil || p < 0 || p > 65535 {
			return usageError(cmd, "invalid port %q", args[0])
		}
		port = p
	}
	cmd.SilenceUsage = true

	log, err := logging.New(logging.Options{Level: logLevel, File: logFile})
	if err != nil {
		return err
	}
	defer logging.Close(log)

	cfg := simserver.DefaultConfig()
	cfg.Logger = log
	srv := simserver.New(cfg)
	if err := srv.Listen(net.JoinHostPort("127.0.0.1", strconv.Itoa(port))); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mock simulator listening on %s\n", srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		if err := srv.Close(); err != nil {
			return err
		}
		return <-errc
	case err := <-errc:
		srv.Close()
		return err
	}
}
