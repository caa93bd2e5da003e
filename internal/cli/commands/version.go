package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/rdm/pkg/adapter"
)

// BuildInfo is version metadata set at build time.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display rdm version, build information and the registered database adapters.`,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "rdm v%s\n", info.Version)
			_, _ = fmt.Fprintf(w, "commit %s, built %s, %s %s/%s\n", info.Commit, info.BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			_, _ = fmt.Fprintf(w, "adapters: %s\n", joinOrDash(adapter.ListAdapters()))
		},
	}
}
