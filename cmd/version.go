package cmd

import (
	"github.com/spf13/cobra"

	"github.com/updrift/updrift/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints updrift version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Version())
	},
}
