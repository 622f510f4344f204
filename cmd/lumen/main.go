// Command lumen is the reference driver: it compiles
// and/or disassembles a script, or starts the interactive REPL when no
// file is given. Exit code 0 on success, 1 on any error.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"lumen/internal/disasm"
	"lumen/internal/errors"
	"lumen/internal/repl"
	"lumen/internal/runtime"
)

var errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

func main() {
	os.Exit(run())
}

func run() int {
	list := flag.String("l", "", "disassemble `file` without executing it")
	exec := flag.String("r", "", "execute `file`")
	both := flag.String("a", "", "disassemble `file`, then execute it")
	stats := flag.Bool("stats", false, "print runtime statistics after execution")
	seed := flag.Int64("seed", 0, "seed for shuffle/sample (0 = process default)")
	gcThreshold := flag.Int("gc-threshold", 0, "cycle-collector candidate threshold (0 = default)")
	flag.Parse()

	path, doList, doExec := "", false, true
	switch {
	case *list != "":
		path, doList, doExec = *list, true, false
	case *exec != "":
		path = *exec
	case *both != "":
		path, doList = *both, true
	case flag.NArg() == 1:
		path = flag.Arg(0)
	case flag.NArg() == 0:
		return repl.Run(runtime.Options{Seed: *seed, GCThreshold: *gcThreshold})
	default:
		fmt.Fprintln(os.Stderr, "usage: lumen [-l|-r|-a] file")
		return 1
	}

	src, err := os.ReadFile(path)
	if err != nil {
		fail("cannot read %s: %v", path, err)
		return 1
	}

	rt := runtime.New(runtime.Options{Seed: *seed, GCThreshold: *gcThreshold})
	defer rt.Close()

	root, err := rt.Compile(path, string(src))
	if err != nil {
		fail("%v", err)
		return 1
	}
	if doList {
		fmt.Print(disasm.Program(root))
	}
	if doExec {
		if _, err := rt.Run(root); err != nil {
			if le, ok := err.(*errors.LumenError); ok && le.Location.File == "" {
				le.WithFile(path)
			}
			fail("%v", err)
			return 1
		}
	}
	if *stats {
		fmt.Fprintln(os.Stderr, rt.StatsLine())
	}
	return 0
}

// fail writes an error to stderr, coloured when stderr is a terminal.
func fail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		msg = errStyle.Render(msg)
	}
	fmt.Fprintln(os.Stderr, msg)
}
