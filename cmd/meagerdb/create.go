package main

import (
	"fmt"

	"github.com/spf13/cobra"

	meagerdb "github.com/fpgaminer/meagerdb-go"
)

func newCreateCmd(cc *cliContext) *cobra.Command {
	var iterations uint64

	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a new, empty MeagerDB database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := cc.requirePassword()
			if err != nil {
				return err
			}

			if iterations == 0 {
				iterations = cc.cfg.Iterations
			}

			db, err := meagerdb.Create(args[0], password, iterations, meagerdb.WithLogger(cc.log))
			if err != nil {
				return fmt.Errorf("create %s: %w", args[0], err)
			}
			defer db.Close()

			cc.log.Info().Str("path", args[0]).Uint64("iterations", iterations).Msg("database created")
			return nil
		},
	}

	cmd.Flags().Uint64Var(&iterations, "iterations", 0, "PBKDF2 iteration count (default from config)")

	return cmd
}
