// File: cmd/pilot/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/xkilldash9x/pilot/cmd"
	"github.com/xkilldash9x/pilot/internal/observability"
)

const panicLogFile = "panic.log"

const banner = `
  pilot  ~  type what you want the browser to do
          (e.g. "open github.com and search for chromedp")
          "exit" or Ctrl+D to leave

`

// Function variables so tests can replace them.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

// subcommands are passed through as-is in the shell; anything else is a
// command to plan and run.
var subcommands = map[string]bool{
	"run": true, "plan": true, "exec": true, "page-agent": true,
	"history": true, "version": true, "help": true,
}

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				osExit(0)
			} else {
				osExit(1)
			}
		}
		return
	}

	if err := runShell(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
}

// runShell reads one command per line until EOF or "exit".
func runShell(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprint(out, banner)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "pilot > ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		executeInteractiveCommand(ctx, shellArgs(line), out)
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Fprintln(out, "Exiting pilot.")
	return nil
}

// shellArgs maps a shell line onto command line arguments.
func shellArgs(line string) []string {
	fields := strings.Fields(line)
	if subcommands[fields[0]] || strings.HasPrefix(fields[0], "-") {
		return fields
	}
	return []string{"run", line}
}

// executeInteractiveCommand runs one line, keeping the shell alive on errors
// and panics.
func executeInteractiveCommand(ctx context.Context, args []string, out io.Writer) {
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Error: Command panicked: %v\n", r)
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

// handlePanic writes the stack of an unrecovered panic to panic.log.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()

		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
		if err := osWriteFile(panicLogFile, []byte(panicMessage), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(1)
			return
		}

		fmt.Fprintf(os.Stderr, "\n----------------------------------------------------------------\n")
		fmt.Fprintf(os.Stderr, "CRASH DETECTED. Details logged to %s\n", panicLogFile)
		fmt.Fprintf(os.Stderr, "----------------------------------------------------------------\n")
		osExit(2)
	}
}
