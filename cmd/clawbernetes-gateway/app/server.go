// Package app builds the clawbernetes-gateway cobra command tree.
//
// Grounded on the koordinator-sh scheduler's cmd/koord-scheduler/app
// shape (a NewXCommand constructor returning a *cobra.Command whose RunE
// builds and runs the long-lived server), stripped of the apiserver/
// leader-election/feature-gate scaffolding that shape carries for a
// Kubernetes control plane binary -- this gateway has no apiserver to
// join.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/clawbernetes/gateway/pkg/api"
	"github.com/clawbernetes/gateway/pkg/config"
	"github.com/clawbernetes/gateway/pkg/gateway"
	"github.com/clawbernetes/gateway/pkg/gatewaylog"
)

// Version is set at build time via -ldflags; "dev" otherwise.
var Version = "dev"

// NewCommand builds the root clawbernetes-gateway command.
func NewCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "clawbernetes-gateway",
		Short: "Clawbernetes gateway control plane",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the gateway version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	var override config.Config
	var nodeAddr, apiAddr string
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the gateway, accepting node connections and submitter requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(override, nodeAddr, apiAddr, development)
		},
	}

	flags := cmd.Flags()
	flags.AddFlagSet(config.FlagSet(&override))
	flags.StringVar(&nodeAddr, "node-listen-addr", ":7330", "address the node<->gateway wire protocol listens on")
	flags.StringVar(&apiAddr, "api-listen-addr", ":7331", "address the submitter REST interface listens on")
	flags.BoolVar(&development, "development", false, "use human-readable console logging instead of JSON")

	return cmd
}

func runServe(override config.Config, nodeAddr, apiAddr string, development bool) error {
	log := gatewaylog.New("clawbernetes-gateway", development)

	cfg, err := config.Load(override)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	gw, err := gateway.New(cfg, log, clock.RealClock{})
	if err != nil {
		return fmt.Errorf("building gateway: %w", err)
	}

	nodeListener, err := net.Listen("tcp", nodeAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", nodeAddr, err)
	}
	go func() {
		if err := gw.ServeNodes(nodeListener); err != nil {
			log.Error(err, "node listener stopped")
		}
	}()

	apiServer := &http.Server{Addr: apiAddr, Handler: api.NewServer(gw, log).Handler()}
	go func() {
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "api server stopped")
		}
	}()

	ctx := context.Background()
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}

	log.Info("clawbernetes-gateway serving", "node_addr", nodeAddr, "api_addr", apiAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SessionOutboundDrainTimeout()+5*time.Second)
	defer cancel()

	_ = nodeListener.Close()
	_ = apiServer.Shutdown(shutdownCtx)
	return gw.Shutdown(shutdownCtx)
}
