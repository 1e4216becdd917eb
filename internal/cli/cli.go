// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/vk/rendergraph/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating if the program should exit cleanly,
// or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("rendergraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
rendergraph - a node-based render graph engine.

Usage:
  rendergraph [options] [GRAPH_PATH]

Arguments:
  GRAPH_PATH
    Path to a single .hcl graph description or a directory of them.

Options:
`)
		flagSet.PrintDefaults()
	}

	graphFlag := flagSet.String("graph", "", "Path to the graph description file or directory.")
	framesFlag := flagSet.Int("frames", 0, "Number of frames to drive. 0 uses the graph's setting.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	graphPath := *graphFlag
	if graphPath == "" && flagSet.NArg() > 0 {
		graphPath = flagSet.Arg(0)
	}
	if graphPath == "" {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: "a graph description path is required"}
	}

	return &app.Config{
		GraphPath: graphPath,
		Frames:    *framesFlag,
		LogFormat: *logFormatFlag,
		LogLevel:  *logLevelFlag,
	}, false, nil
}
