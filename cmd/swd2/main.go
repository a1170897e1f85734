// Command swd2 bridges a host terminal (or a script on stdin) to a
// Forth console running on a target, using an ST-LINK/V2-class SWD
// debugger's memory-access primitives as the transport. See SPEC_FULL.md
// for the full design.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/Crest/swdcom/internal/bridge"
	"github.com/Crest/swdcom/internal/rawterm"
	"github.com/Crest/swdcom/internal/termclass"
	"github.com/Crest/swdcom/internal/transport"
)

// errUsage is the sentinel returned by the Args validator; mainImpl maps
// it to exit code 64 without cobra's own usage banner (spec.md §6).
var errUsage = errors.New("usage: swd2 [<base-addr-hex>] [<serial>]")

func main() {
	os.Exit(mainImpl())
}

func mainImpl() int {
	var debugTrace bool

	root := &cobra.Command{
		Use:           "swd2 [<base-addr-hex>] [<serial>]",
		Short:         "bridge a target's Forth console over an SWD debugger",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 2 {
				return errUsage
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args, debugTrace)
		},
	}
	root.Flags().BoolVar(&debugTrace, "debug-trace", false, "log one line per loop cycle with the decoded ring indices")

	if err := root.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, errUsage.Error())
			return 64
		}
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

// run wires transport, raw mode, and the bridge together, and is the
// sole owner of process exit codes below mainImpl: it returns a plain
// error on fatal failure and nil on a clean quit, never calling os.Exit
// itself so every deferred release below still runs.
func run(args []string, debugTrace bool) (err error) {
	var baseHex, serial string
	switch len(args) {
	case 0:
	case 1:
		baseHex = args[0]
	case 2:
		baseHex, serial = args[0], args[1]
	}

	mem := transport.Memory(&transport.NotImplementedMemory{Serial: serial})
	defer func() {
		fmt.Fprintln(os.Stderr, "Closing ST-LINK/V2 handle.")
		if cerr := mem.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if cs, ok := mem.(transport.ClockSetter); ok {
		const stlinkSWDClk4MHzDivisor = 2
		if cerr := cs.SetClock(4_000_000 / stlinkSWDClk4MHzDivisor); cerr != nil {
			fmt.Fprintf(os.Stderr, "Failed to set SWD clock: %v.\n", cerr)
		}
	}

	var base uint32
	if baseHex != "" {
		v, perr := strconv.ParseUint(baseHex, 16, 32)
		if perr != nil {
			return fmt.Errorf("invalid base address %q: %w", baseHex, perr)
		}
		base = uint32(v)
	} else {
		v, rerr := bridge.ResolveBaseAddress(mem)
		if rerr != nil {
			return fmt.Errorf("resolve base address from target: %w", rerr)
		}
		base = v
	}

	if serial != "" {
		fmt.Fprintf(os.Stdout, "\x1b]2;swd2 : %s\x07", serial)
	}

	stdinKind, cerr := termclass.Classify(int(os.Stdin.Fd()))
	if cerr != nil {
		return fmt.Errorf("classify stdin: %w", cerr)
	}
	bridgeKind := bridge.StdinRegular
	switch stdinKind {
	case termclass.TTY:
		bridgeKind = bridge.StdinTTY
	case termclass.Pipe:
		bridgeKind = bridge.StdinPipe
	case termclass.Regular:
		bridgeKind = bridge.StdinRegular
	}

	if stdinKind == termclass.TTY {
		raw, rerr := rawterm.Enter(int(os.Stdin.Fd()))
		if rerr != nil {
			return fmt.Errorf("enter raw mode: %w", rerr)
		}
		defer raw.Release()
	}
	if nerr := unix.SetNonblock(int(os.Stdin.Fd()), true); nerr != nil {
		return fmt.Errorf("set stdin non-blocking: %w", nerr)
	}

	b := bridge.New(bridge.Config{
		Base:      base,
		Mem:       mem,
		Stderr:    os.Stderr,
		StdoutFD:  int(os.Stdout.Fd()),
		StdinFD:   int(os.Stdin.Fd()),
		StdinKind: bridgeKind,
	})
	if debugTrace {
		b.DebugTrace = func(line string) {
			fmt.Fprintln(os.Stderr, line)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.WatchSignals(ctx)

	return b.Run()
}
