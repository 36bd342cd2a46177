package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the validated resource graph",
	Long:  `Prints the dependency graph in Graphviz DOT form. Solid edges are require, dashed edges are notify.`,
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&graphFormat, "format", "dot", "output format (dot)")
}

func runGraph(cmd *cobra.Command, args []string) error {
	_, g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	if graphFormat != "dot" {
		return fmt.Errorf("unsupported graph format %q", graphFormat)
	}
	fmt.Print(g.DOT())
	return nil
}
