package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// newConfigCmd wires "meagerdb config get/set", reading and atomically
// rewriting the local .meagerdbrc JSONC file.
func newConfigCmd(cc *cliContext, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the local .meagerdbrc defaults file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one config value (iterations, log_level)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "iterations":
				fmt.Println(cc.cfg.Iterations)
			case "log_level":
				fmt.Println(cc.cfg.LogLevel)
			default:
				return fmt.Errorf("unknown config key %q", args[0])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one config value and atomically rewrite .meagerdbrc",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cc.cfg
			switch args[0] {
			case "iterations":
				n, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("iterations: %w", err)
				}
				cfg.Iterations = n
			case "log_level":
				cfg.LogLevel = args[1]
			default:
				return fmt.Errorf("unknown config key %q", args[0])
			}

			if err := saveConfig(*configPath, cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			cc.cfg = cfg
			return nil
		},
	})

	return cmd
}
