package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/calvinalkan/shmcache/pkg/shmcache"
)

var errUsage = errors.New("usage error")

// dispatch runs one subcommand against eng and returns a process exit code.
func dispatch(eng *shmcache.Engine, cmd string, args []string, out, errOut io.Writer) int {
	err := runCommand(eng, cmd, args, out)

	switch {
	case err == nil:
		return 0
	case errors.Is(err, shmcache.ErrMiss), errors.Is(err, shmcache.ErrNotFound), errors.Is(err, shmcache.ErrExists):
		fmt.Fprintln(out, err)

		return 1
	case errors.Is(err, errUsage):
		fmt.Fprintln(errOut, err)

		return 2
	default:
		fmt.Fprintln(errOut, "shmcachectl:", err)

		return 1
	}
}

func runCommand(eng *shmcache.Engine, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("%w: get <key>", errUsage)
		}

		value, flags, err := eng.Get([]byte(args[0]))
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s (flags=%#x)\n", value, flags)

		return nil

	case "set", "add", "replace":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("%w: %s <key> <value> [flags]", errUsage, cmd)
		}

		flags, err := parseFlags(args, 2)
		if err != nil {
			return err
		}

		key, value := []byte(args[0]), []byte(args[1])

		switch cmd {
		case "set":
			return eng.Set(key, value, flags)
		case "add":
			return eng.Add(key, value, flags)
		default:
			return eng.Replace(key, value, flags)
		}

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("%w: delete <key>", errUsage)
		}

		return eng.Delete([]byte(args[0]))

	case "exists":
		if len(args) != 1 {
			return fmt.Errorf("%w: exists <key>", errUsage)
		}

		found, err := eng.Exists([]byte(args[0]))
		if err != nil {
			return err
		}

		fmt.Fprintln(out, found)

		return nil

	case "incr":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("%w: incr <key> <delta> [initial]", errUsage)
		}

		delta, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: delta must be an integer", errUsage)
		}

		var initial int64

		if len(args) == 3 {
			initial, err = strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: initial must be an integer", errUsage)
			}
		}

		result, err := eng.Increment([]byte(args[0]), delta, initial)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, result)

		return nil

	case "flush":
		return eng.Flush()

	case "stats":
		stats, err := eng.Stats()
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "items=%d bucketsUsed=%d getHits=%d getMisses=%d\n",
			stats.Items, stats.BucketsUsed, stats.GetHits, stats.GetMisses)

		return nil

	case "check":
		if err := eng.CheckInvariants(); err != nil {
			return err
		}

		fmt.Fprintln(out, "ok")

		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func parseFlags(args []string, idx int) (byte, error) {
	if len(args) <= idx {
		return 0, nil
	}

	n, err := strconv.ParseUint(args[idx], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: flags must be a small integer", errUsage)
	}

	return byte(n), nil
}
