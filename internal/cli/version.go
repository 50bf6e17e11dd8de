package cli

import (
	"fmt"

	"github.com/andywolf/odin/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the odin version, commit and build date.

Builds without release ldflags report the module version and VCS data
embedded by the Go toolchain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(out, version.Current())
		}
		if full, _ := cmd.Flags().GetBool("full"); full {
			fmt.Fprintln(out, version.Full())
			return nil
		}
		fmt.Fprintln(out, version.Info())
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("full", false, "print build details on separate lines")
	versionCmd.Flags().Bool("json", false, "print build details as JSON")
	rootCmd.AddCommand(versionCmd)
}
