package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/Zereker/msgproto"
	"github.com/Zereker/msgproto/internal/config"
	"github.com/Zereker/msgproto/internal/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newServerCommand(a *app) *cobra.Command {
	var (
		addr        string
		greeting    string
		capacity    int
		readTimeout time.Duration
		maxRequests int
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Answer datagram requests with a greeting",
		Long: `Binds a UDP socket and answers every well-formed request with a
response carrying the greeting. Malformed requests are logged and dropped;
the server keeps waiting for the next datagram.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := a.cfg.Server
			if cmd.Flags().Changed("addr") {
				sc.Addr = addr
			}
			if cmd.Flags().Changed("greeting") {
				sc.Greeting = greeting
			}
			if cmd.Flags().Changed("capacity") {
				sc.Capacity = capacity
			}
			if cmd.Flags().Changed("read-timeout") {
				sc.ReadTimeout = config.Duration(readTimeout)
			}
			if cmd.Flags().Changed("max-requests") {
				sc.MaxRequests = maxRequests
			}
			if err := sc.Validate(); err != nil {
				return err
			}

			server, err := msgproto.Listen(sc.Addr, msgproto.GreetingHandler(sc.Greeting),
				msgproto.CapacityOption(sc.Capacity),
				msgproto.ReadTimeoutOption(sc.ReadTimeout.Std()),
				msgproto.MaxRequestsOption(sc.MaxRequests),
				msgproto.LoggerOption(a.logger),
			)
			if err != nil {
				return errors.Wrap(err, "failed to start server")
			}
			defer server.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Server is listening on %s\n", server.Addr())

			err = server.Serve(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				a.logger.Error("server stopped", logging.Err(err))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&greeting, "greeting", "", "response payload")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "payload capacity in bytes")
	cmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "bound on each receive, 0 waits forever")
	cmd.Flags().IntVar(&maxRequests, "max-requests", 0, "exit after this many answered requests, 0 serves forever")
	return cmd
}

func newClientCommand(a *app) *cobra.Command {
	var (
		addr     string
		greeting string
		capacity int
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Send one request and print the reply",
		Long: `Sends a single request datagram to the server and waits for exactly
one reply. A missing, truncated or malformed reply exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := a.cfg.Client
			if cmd.Flags().Changed("addr") {
				cc.Addr = addr
			}
			if cmd.Flags().Changed("greeting") {
				cc.Greeting = greeting
			}
			if cmd.Flags().Changed("capacity") {
				cc.Capacity = capacity
			}
			if cmd.Flags().Changed("timeout") {
				cc.Timeout = config.Duration(timeout)
			}
			if err := cc.Validate(); err != nil {
				return err
			}

			client, err := msgproto.Dial(cmd.Context(), cc.Addr,
				msgproto.CapacityOption(cc.Capacity),
				msgproto.ReadTimeoutOption(cc.Timeout.Std()),
				msgproto.LoggerOption(a.logger),
			)
			if err != nil {
				return errors.Wrap(err, "failed to start client")
			}
			defer client.Close()

			resp, err := client.Greet(cmd.Context(), cc.Greeting)
			if err != nil {
				return errors.Wrapf(err, "exchange with %s failed", cc.Addr)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Received from server: %s\n", msgproto.Display(resp))
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (default from config, 127.0.0.1:8080)")
	cmd.Flags().StringVar(&greeting, "greeting", "", "request payload")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "payload capacity in bytes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait for the reply")
	return cmd
}
