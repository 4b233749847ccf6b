package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version information - injected at build time via ldflags
var (
	Version   = "dev"
	Build     = "unknown"
	BuildTime = ""
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(a.stdout)
		},
	}
}

// printVersion prints the version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "loadseq version %s", Version)

	if Build != "unknown" && Build != "" {
		fmt.Fprintf(w, " (build: %s)", Build)
	}

	if BuildTime != "" {
		fmt.Fprintf(w, " [%s]", BuildTime)
	}

	fmt.Fprintln(w)

	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" && len(setting.Value) > 7 {
					fmt.Fprintf(w, "Commit: %s\n", setting.Value[:7])
					break
				}
			}
		}
	}
}
