package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cliContext bundles per-invocation state threaded through every
// subcommand's RunE: the resolved config, a logger tagged with a
// correlation ID, and the password resolved from --password/-p or
// MEAGERDB_PASSWORD.
type cliContext struct {
	cfg      config
	log      zerolog.Logger
	password string
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		password   string
	)

	v := viper.New()
	v.SetEnvPrefix("meagerdb")
	v.AutomaticEnv()

	cc := &cliContext{}

	root := &cobra.Command{
		Use:           "meagerdb",
		Short:         "Create, inspect, and explore MeagerDB database files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cc.cfg = cfg

			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			} else if l, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
				level = l
			}

			correlationID := uuid.New().String()
			cc.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).
				With().
				Timestamp().
				Str("correlation_id", correlationID).
				Logger()

			cc.password = password
			if cc.password == "" {
				cc.password = v.GetString("password")
			}

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to .meagerdbrc (default ./.meagerdbrc)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&password, "password", "p", "", "database password (or $MEAGERDB_PASSWORD)")
	_ = v.BindPFlag("password", root.PersistentFlags().Lookup("password"))

	root.AddCommand(
		newCreateCmd(cc),
		newInspectCmd(cc),
		newShellCmd(cc),
		newDumpCmd(cc),
		newConfigCmd(cc, &configPath),
	)

	return root
}

// requirePassword returns cc.password or an error, since every command that
// touches a database file needs one.
func (cc *cliContext) requirePassword() (string, error) {
	if cc.password == "" {
		return "", fmt.Errorf("a password is required: pass --password or set MEAGERDB_PASSWORD")
	}
	return cc.password, nil
}
