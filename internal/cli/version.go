package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set by the build via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the converge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("converge", Version)
	},
}
