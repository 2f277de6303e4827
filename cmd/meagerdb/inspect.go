package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	meagerdb "github.com/fpgaminer/meagerdb-go"
)

func newInspectCmd(cc *cliContext) *cobra.Command {
	var table uint8

	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "List the rows stored in one table of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := cc.requirePassword()
			if err != nil {
				return err
			}

			db, err := meagerdb.Open(args[0], password, meagerdb.WithLogger(cc.log))
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer db.Close()

			tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROWID\tPAGE\tVALUE LEN")

			count := 0
			restart := true
			for {
				end, err := db.Walk(table, restart)
				if err != nil {
					return fmt.Errorf("walk: %w", err)
				}
				if end {
					break
				}
				restart = false

				page, err := db.SelectedPage()
				if err != nil {
					return fmt.Errorf("selected page: %w", err)
				}
				_, rowid, err := db.GetRowid()
				if err != nil {
					return fmt.Errorf("get rowid: %w", err)
				}
				vlen, err := db.ValueLen()
				if err != nil {
					return fmt.Errorf("value len: %w", err)
				}

				fmt.Fprintf(tw, "%d\t%d\t%d\n", rowid, page, vlen)
				count++
			}

			if err := tw.Flush(); err != nil {
				return err
			}

			cc.log.Debug().Int("table", int(table)).Int("rows", count).Msg("inspect complete")
			return nil
		},
	}

	cmd.Flags().Uint8Var(&table, "table", 0, "table id to list")

	return cmd
}
