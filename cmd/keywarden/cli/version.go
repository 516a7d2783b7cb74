package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/store"
)

// buildInfo describes this binary. Dialects are the credential stores it can
// open; modules pins the driver versions it was linked against.
type buildInfo struct {
	Version   string            `json:"version"`
	Commit    string            `json:"commit"`
	Built     string            `json:"built"`
	GoVersion string            `json:"go_version"`
	Platform  string            `json:"platform"`
	Dialects  []string          `json:"store_dialects"`
	Modules   map[string]string `json:"driver_modules,omitempty"`
}

// driverModules are the store drivers worth reporting.
var driverModules = []string{
	"modernc.org/sqlite",
	"github.com/jackc/pgx/v5",
	"github.com/go-sql-driver/mysql",
	"github.com/microsoft/go-mssqldb",
	"github.com/sijms/go-ora/v2",
	"github.com/redis/go-redis/v9",
}

func collectBuildInfo(version, commit, date string) buildInfo {
	info := buildInfo{
		Version:   version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dialects:  store.Dialects,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Modules = make(map[string]string)
		for _, dep := range bi.Deps {
			for _, want := range driverModules {
				if dep.Path == want {
					info.Modules[dep.Path] = dep.Version
				}
			}
		}
	}
	return info
}

func newVersionCmd(version, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := collectBuildInfo(version, commit, date)
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, info)
			}

			fmt.Fprintf(out, "keywarden %s (%s, built %s)\n", info.Version, info.Commit, info.Built)
			fmt.Fprintf(out, "  go:       %s %s\n", info.GoVersion, info.Platform)
			fmt.Fprintf(out, "  stores:   %s\n", strings.Join(info.Dialects, ", "))
			for _, path := range driverModules {
				if v, ok := info.Modules[path]; ok {
					fmt.Fprintf(out, "  %s %s\n", path, v)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}
