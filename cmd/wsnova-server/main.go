// Command wsnova-server boots a wsnova.Server that echoes every received
// text message back to its sender. It is a demonstration entry point, not
// part of the library's public API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pepnova9/wsnova"
)

func main() {
	var (
		listenIP             string
		listenPort           int
		rememberDisconnected bool
		passiveExpiration    bool
		passiveLifetime      time.Duration
		sendUserID           bool
	)

	root := &cobra.Command{
		Use:   "wsnova-server",
		Short: "Run a wsnova WebSocket echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logrus.StandardLogger()

			srv := wsnova.NewServer(
				wsnova.WithListenAddress(listenIP, listenPort),
				wsnova.WithRememberDisconnectedClients(rememberDisconnected),
				wsnova.WithPassiveExpiration(passiveExpiration),
				wsnova.WithPassiveClientLifetime(passiveLifetime),
				wsnova.WithSendUserIDToClient(sendUserID),
				wsnova.WithLogger(logger),
			)

			srv.OnClientConnected(func(e wsnova.ConnectedEvent) {
				logger.WithField("client_id", e.ClientID).Info("client connected")
			})
			srv.OnClientDisconnected(func(e wsnova.DisconnectedEvent) {
				logger.WithField("client_id", e.ClientID).WithField("reason", e.Reason).Info("client disconnected")
			})
			srv.OnPassiveUserExpired(func(e wsnova.PassiveExpiredEvent) {
				logger.WithField("client_id", e.ClientID).Info("passive client expired")
			})
			srv.OnMessageReceived(func(e wsnova.MessageEvent) {
				logger.WithField("client_id", e.ClientID).WithField("text", e.Text).Info("message received, echoing")
				if err := srv.SendMessage(context.Background(), e.ClientID, e.Text); err != nil {
					logger.WithError(err).Warn("echo failed")
				}
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("starting server: %w", err)
			}
			logger.WithField("addr", srv.Addr()).Info("listening")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			return srv.Shutdown(context.Background())
		},
	}

	flags := root.Flags()
	flags.StringVar(&listenIP, "listen-ip", "0.0.0.0", "address to listen on")
	flags.IntVar(&listenPort, "listen-port", 8010, "port to listen on")
	flags.BoolVar(&rememberDisconnected, "remember-disconnected", false, "retain disconnected clients for re-identification")
	flags.BoolVar(&passiveExpiration, "passive-expiration", false, "expire retained clients after --passive-lifetime")
	flags.DurationVar(&passiveLifetime, "passive-lifetime", time.Minute, "TTL for retained clients")
	flags.BoolVar(&sendUserID, "send-user-id", false, "echo the confirmed client id back to the client")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
