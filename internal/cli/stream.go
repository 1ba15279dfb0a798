package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Zereker/msgproto/internal/config"
	"github.com/Zereker/msgproto/internal/logging"
	"github.com/Zereker/msgproto/stream"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newStreamServerCommand(a *app) *cobra.Command {
	var (
		addr     string
		greeting string
		readSize int
		maxConns int
	)

	cmd := &cobra.Command{
		Use:   "stream-server",
		Short: "Greet TCP connections and print each reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := a.cfg.Stream
			if cmd.Flags().Changed("addr") {
				sc.Addr = addr
			}
			if cmd.Flags().Changed("greeting") {
				sc.Greeting = greeting
			}
			if cmd.Flags().Changed("read-size") {
				sc.ReadSize = readSize
			}
			if cmd.Flags().Changed("max-conns") {
				sc.MaxConns = maxConns
			}
			if err := sc.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			server, err := stream.Listen(cmd.Context(), sc.Addr,
				stream.GreetingOption(sc.Greeting),
				stream.ReadSizeOption(sc.ReadSize),
				stream.TimeoutOption(sc.Timeout.Std()),
				stream.MaxConnsOption(sc.MaxConns),
				stream.LoggerOption(a.logger),
				stream.OnReplyOption(func(_ net.Addr, reply []byte) {
					fmt.Fprintf(out, "Client sent: %s\n", reply)
				}),
			)
			if err != nil {
				return errors.Wrap(err, "failed to start stream server")
			}
			defer server.Close()

			fmt.Fprintf(out, "Server started on %s\n", server.Addr())

			err = server.Serve(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				a.logger.Error("stream server stopped", logging.Err(err))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&greeting, "greeting", "", "text written to every connection")
	cmd.Flags().IntVar(&readSize, "read-size", 0, "maximum reply bytes read per connection")
	cmd.Flags().IntVar(&maxConns, "max-conns", 0, "exit after this many connections, 0 serves forever (default from config, 1)")
	return cmd
}

func newStreamClientCommand(a *app) *cobra.Command {
	var (
		addr    string
		reply   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stream-client",
		Short: "Read the TCP greeting and answer it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := a.cfg.Stream
			target := a.cfg.Client.Addr
			if cmd.Flags().Changed("addr") {
				target = addr
			}
			if cmd.Flags().Changed("reply") {
				sc.Reply = reply
			}
			if cmd.Flags().Changed("timeout") {
				sc.Timeout = config.Duration(timeout)
			}

			greeting, err := stream.Greet(cmd.Context(), target, sc.Reply,
				stream.ReadSizeOption(sc.ReadSize),
				stream.TimeoutOption(sc.Timeout.Std()),
				stream.LoggerOption(a.logger),
			)
			if err != nil {
				return errors.Wrapf(err, "greeting exchange with %s failed", target)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Server sent: %s\n", greeting)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (default from config client.addr, 127.0.0.1:8080)")
	cmd.Flags().StringVar(&reply, "reply", "", "text sent back to the server")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "bound on the whole exchange")
	return cmd
}
