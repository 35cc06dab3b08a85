// Command dogear-merge loads a local and a remote bookmark tree from YAML
// fixtures, runs the two-way merge, and prints the resulting completion
// operations.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dogear-go/dogear/internal/cmd"
	"github.com/dogear-go/dogear/pkg/dogear"
	"github.com/dogear-go/dogear/pkg/logging"
)

func rootMain(command *cobra.Command, arguments []string) {
	if rootConfiguration.version {
		fmt.Println(dogear.Version)
		return
	}
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "dogear-merge",
	Short: "dogear-merge runs a two-way bookmark tree merge against a pair of fixture files.",
	PersistentPreRun: func(command *cobra.Command, arguments []string) {
		if rootConfiguration.debug {
			logging.DebugEnabled = true
		}
	},
	Run: rootMain,
}

var rootConfiguration struct {
	help    bool
	version bool
	debug   bool
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")
	flags.BoolVar(&rootConfiguration.debug, "debug", false, "Enable trace-level logging")

	cobra.EnableCommandSorting = false
	cobra.MousetrapHelpText = ""

	rootCommand.AddCommand(
		mergeCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
}
