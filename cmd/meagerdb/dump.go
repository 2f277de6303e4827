package main

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	meagerdb "github.com/fpgaminer/meagerdb-go"
	"github.com/fpgaminer/meagerdb-go/kv"
)

// dumpRecord is one key/value record found in a row's payload, rendered for
// export. Value is base64 since the payload is opaque bytes.
type dumpRecord struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// dumpRow is one exported row: its identity plus either its decoded kv
// records, or (with --raw) the whole value as base64.
type dumpRow struct {
	Table   uint8        `yaml:"table"`
	Rowid   uint32       `yaml:"rowid"`
	Records []dumpRecord `yaml:"records,omitempty"`
	Raw     string       `yaml:"raw,omitempty"`
}

func newDumpCmd(cc *cliContext) *cobra.Command {
	var (
		table uint8
		raw   bool
	)

	cmd := &cobra.Command{
		Use:   "dump <path>",
		Short: "Export a table's rows as YAML",
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

			var rows []dumpRow
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

				_, rowid, err := db.GetRowid()
				if err != nil {
					return fmt.Errorf("get rowid: %w", err)
				}

				row := dumpRow{Table: table, Rowid: rowid}
				if raw {
					value, err := db.GetValue(1 << 24)
					if err != nil {
						return fmt.Errorf("rowid %d: get value: %w", rowid, err)
					}
					row.Raw = base64.StdEncoding.EncodeToString(value)
				} else {
					records, err := decodeRecords(db)
					if err != nil {
						return fmt.Errorf("rowid %d: decode records: %w", rowid, err)
					}
					row.Records = records
				}

				rows = append(rows, row)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(rows)
		},
	}

	cmd.Flags().Uint8Var(&table, "table", 0, "table id to dump")
	cmd.Flags().BoolVar(&raw, "raw", false, "dump the whole row value as base64 instead of decoding kv records")

	return cmd
}

// decodeRecords reads every kv record in the selected row, in order,
// stopping when ReadKey reports NotFound at the terminator (an empty row
// gives NotFound on index 0). A payload that isn't kv-formatted is not
// detected: its bytes are read as records, and any other read error is
// returned.
func decodeRecords(db *meagerdb.DB) ([]dumpRecord, error) {
	var records []dumpRecord
	for idx := uint32(0); ; idx++ {
		key, err := kv.ReadKey(db, idx)
		if err != nil {
			if errors.Is(err, meagerdb.ErrNotFound) {
				return records, nil
			}
			return nil, err
		}

		value, found, err := kv.GetValue(db, key, 1<<24)
		if err != nil {
			return nil, err
		}
		if !found {
			return records, nil
		}

		records = append(records, dumpRecord{
			Key:   base64.StdEncoding.EncodeToString(key[:]),
			Value: base64.StdEncoding.EncodeToString(value),
		})
	}
}
