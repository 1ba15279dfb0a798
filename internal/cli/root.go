// Package cli wires the msgproto roles into a cobra command tree.
package cli

import (
	"log/slog"

	"github.com/Zereker/msgproto/internal/config"
	"github.com/Zereker/msgproto/internal/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand, set in PersistentPreRunE.
type app struct {
	cfgFile  string
	logLevel string
	noColor  bool

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand returns the msgproto command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "msgproto",
		Short: "Custom datagram message protocol: server, client and a TCP greeting example",
		Long: `msgproto runs one side of a small request/response protocol over UDP.
Every message is an 8 byte big-endian header (type, length) followed by
length payload bytes. The stream-* commands run the unframed TCP greeting
exchange on the same port family.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file, .yaml or .toml (default: built-in settings)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored log output")

	root.AddCommand(
		newServerCommand(a),
		newClientCommand(a),
		newStreamServerCommand(a),
		newStreamClientCommand(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.noColor {
		cfg.Log.NoColor = true
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.New(logging.Options{
		Level:   level,
		NoColor: cfg.Log.NoColor,
		Writer:  cmd.ErrOrStderr(),
	})
	return nil
}
