package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	meagerdb "github.com/fpgaminer/meagerdb-go"
	"github.com/fpgaminer/meagerdb-go/kv"
)

var shellCommands = []string{
	"walk", "select", "get", "insert", "update", "delete",
	"kvget", "kvset", "help", "exit", "quit",
}

// shell is the interactive REPL state for "meagerdb shell".
type shell struct {
	db    *meagerdb.DB
	liner *liner.State
}

func newShellCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shell <path>",
		Short: "Open an interactive shell for walking, selecting, and editing rows",
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

			s := &shell{db: db}
			return s.run()
		},
	}
}

func shellHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".meagerdb_history")
}

func (s *shell) run() error {
	s.liner = liner.NewLiner()
	defer s.liner.Close()

	s.liner.SetCtrlCAborts(true)
	s.liner.SetCompleter(s.completer)

	if f, err := os.Open(shellHistoryFile()); err == nil {
		s.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("meagerdb shell. Type 'help' for commands, 'exit' to quit.")

	for {
		line, err := s.liner.Prompt("meagerdb> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			s.saveHistory()
			return nil
		case "help", "?":
			s.printHelp()
		case "walk":
			s.cmdWalk(args)
		case "select":
			s.cmdSelect(args)
		case "get":
			s.cmdGet(args)
		case "insert":
			s.cmdInsert(args)
		case "update":
			s.cmdUpdate(args)
		case "delete":
			s.cmdDelete()
		case "kvget":
			s.cmdKVGet(args)
		case "kvset":
			s.cmdKVSet(args)
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", cmd)
		}
	}

	s.saveHistory()
	return nil
}

func (s *shell) saveHistory() {
	if path := shellHistoryFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			s.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (s *shell) completer(line string) []string {
	var out []string
	for _, c := range shellCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func (s *shell) printHelp() {
	fmt.Println(`Commands:
  walk <table> [restart]      advance the selection to the next row in table
  select <table> <rowid>      select a row by rowid
  get                         print the selected row's value (base64)
  insert <table> [value]      insert value (UTF-8 text) into table
  update <value>              replace the selected row's value
  delete                      delete the selected row
  kvget <key>                 look up a kv record by key (UTF-8, zero-padded)
  kvset <key> <value>         set a kv record on the selected row
  help                        show this help
  exit                        leave the shell`)
}

func (s *shell) cmdWalk(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: walk <table> [restart]")
		return
	}
	table, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		fmt.Printf("bad table: %v\n", err)
		return
	}
	restart := len(args) >= 2 && args[1] == "restart"

	end, err := s.db.Walk(uint8(table), restart)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if end {
		fmt.Println("(end of table)")
		return
	}
	s.printSelected()
}

func (s *shell) cmdSelect(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: select <table> <rowid>")
		return
	}
	table, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		fmt.Printf("bad table: %v\n", err)
		return
	}
	rowid, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		fmt.Printf("bad rowid: %v\n", err)
		return
	}
	if err := s.db.SelectByRowid(uint8(table), uint32(rowid)); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	s.printSelected()
}

func (s *shell) printSelected() {
	table, rowid, err := s.db.GetRowid()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("selected table=%d rowid=%d\n", table, rowid)
}

func (s *shell) cmdGet(args []string) {
	value, err := s.db.GetValue(1 << 24)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println(base64.StdEncoding.EncodeToString(value))
}

func (s *shell) cmdInsert(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: insert <table> [value]")
		return
	}
	table, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		fmt.Printf("bad table: %v\n", err)
		return
	}
	value := []byte(strings.Join(args[1:], " "))
	if err := s.db.Insert(uint8(table), value); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	s.printSelected()
}

func (s *shell) cmdUpdate(args []string) {
	value := []byte(strings.Join(args, " "))
	if err := s.db.Update(value); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("OK")
}

func (s *shell) cmdDelete() {
	if err := s.db.Delete(); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("OK")
}

func parseShellKey(s string) kv.Key {
	var k kv.Key
	copy(k[:], s)
	return k
}

func (s *shell) cmdKVGet(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: kvget <key>")
		return
	}
	value, found, err := kv.GetValue(s.db, parseShellKey(args[0]), 1<<24)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if !found {
		fmt.Println("(not found)")
		return
	}
	fmt.Println(base64.StdEncoding.EncodeToString(value))
}

func (s *shell) cmdKVSet(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: kvset <key> <value>")
		return
	}
	update := kv.Update{Key: parseShellKey(args[0]), Value: []byte(strings.Join(args[1:], " "))}
	if err := kv.Set(s.db, []kv.Update{update}); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("OK")
}
