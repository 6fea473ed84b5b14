// shmcachectl opens a shmcache segment and either runs a single
// subcommand against it or drops into an interactive REPL.
//
// Usage:
//
//	shmcachectl [--config path] [--segment path] [--size bytes] <command> [args...]
//	shmcachectl [--config path] [--segment path] [--size bytes] repl
//
// Commands:
//
//	get <key>
//	set <key> <value> [flags]
//	add <key> <value> [flags]
//	replace <key> <value> [flags]
//	delete <key>
//	exists <key>
//	incr <key> <delta> [initial]
//	flush
//	stats
//	check
//	repl
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	fs := flag.NewFlagSet("shmcachectl", flag.ContinueOnError)
	fs.SetOutput(errOut)

	configPath := fs.String("config", "", "path to a JWCC config file")
	segmentPath := fs.String("segment", "", "path to the segment file (overrides config)")
	segmentSize := fs.Int64("size", 0, "segment size in bytes for a new segment (overrides config)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath, *segmentPath, *segmentSize)
	if err != nil {
		fmt.Fprintln(errOut, "shmcachectl:", err)

		return 1
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(errOut, "shmcachectl: missing command (try \"repl\")")

		return 2
	}

	eng, isNew, err := attachEngine(cfg)
	if err != nil {
		fmt.Fprintln(errOut, "shmcachectl:", err)

		return 1
	}
	defer eng.Detach()

	if isNew {
		fmt.Fprintf(out, "created new segment at %s\n", cfg.SegmentPath)
	}

	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "repl" {
		return runRepl(eng, out, errOut)
	}

	return dispatch(eng, cmd, cmdArgs, out, errOut)
}
