package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/shmcache/internal/fs"
	"github.com/calvinalkan/shmcache/pkg/shmcache"
)

var replCommands = []string{
	"get", "set", "add", "replace", "delete", "exists", "incr", "flush", "stats", "check", "help", "exit", "quit",
}

func runRepl(eng *shmcache.Engine, out, errOut io.Writer) int {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(replCompleter)

	historyPath := replHistoryPath()

	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt("shmcache> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				break
			}

			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		fields := strings.Fields(input)
		cmd, args := fields[0], fields[1:]

		if cmd == "exit" || cmd == "quit" {
			break
		}

		if cmd == "help" {
			printReplHelp(out)

			continue
		}

		if err := runCommand(eng, cmd, args, out); err != nil {
			io.WriteString(errOut, err.Error()+"\n") //nolint:errcheck
		}
	}

	saveReplHistory(line, historyPath)

	return 0
}

// saveReplHistory writes the REPL's history file atomically (via
// [fs.Real.WriteFileAtomic]), so a crash or interrupt mid-write never
// leaves a truncated history file behind.
func saveReplHistory(line *liner.State, historyPath string) {
	var buf bytes.Buffer

	if _, err := line.WriteHistory(&buf); err != nil {
		return
	}

	_ = fs.NewReal().WriteFileAtomic(historyPath, buf.Bytes(), 0o600)
}

func replCompleter(line string) []string {
	var matches []string

	for _, c := range replCommands {
		if strings.HasPrefix(c, line) {
			matches = append(matches, c)
		}
	}

	return matches
}

func replHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shmcachectl_history"
	}

	return filepath.Join(home, ".shmcachectl_history")
}

func printReplHelp(out io.Writer) {
	io.WriteString(out, strings.Join([]string{ //nolint:errcheck
		"commands:",
		"  get <key>",
		"  set <key> <value> [flags]",
		"  add <key> <value> [flags]",
		"  replace <key> <value> [flags]",
		"  delete <key>",
		"  exists <key>",
		"  incr <key> <delta> [initial]",
		"  flush",
		"  stats",
		"  check",
		"  exit / quit",
		"",
	}, "\n"))
}
