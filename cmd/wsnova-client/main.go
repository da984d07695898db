// Command wsnova-client dials a wsnova server and pumps stdin/stdout. It is
// a demonstration entry point, not part of the library's public API.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pepnova9/wsnova"
)

func main() {
	var (
		host   string
		port   int
		path   string
		userID string
	)

	root := &cobra.Command{
		Use:   "wsnova-client",
		Short: "Connect to a wsnova WebSocket server and pump stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logrus.StandardLogger()

			opts := []wsnova.ClientOption{wsnova.WithClientLogger(logger)}
			if userID != "" {
				opts = append(opts, wsnova.WithUserID(userID))
			}

			client := wsnova.NewClient(host, port, path, opts...)
			client.OnMessageReceived(func(e wsnova.ClientMessageEvent) {
				fmt.Println(e.Text)
			})
			client.OnDisconnected(func(e wsnova.ClientDisconnectedEvent) {
				logger.WithField("reason", e.Reason).Info("disconnected")
			})

			if err := client.Connect(cmd.Context()); err != nil {
				return fmt.Errorf("connecting: %w", err)
			}
			logger.WithField("user_id", client.UserID()).Info("connected")

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if err := client.SendMessage(cmd.Context(), scanner.Text()); err != nil {
					return fmt.Errorf("sending message: %w", err)
				}
			}
			return client.Disconnect("Closing")
		},
	}

	flags := root.Flags()
	flags.StringVar(&host, "host", "127.0.0.1", "server host")
	flags.IntVar(&port, "port", 8010, "server port")
	flags.StringVar(&path, "path", "/", "request path")
	flags.StringVar(&userID, "user-id", "", "x-user-id hint for re-identification")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
