package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version of this executable",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %v\n", version)
		fmt.Printf("Build date: %v\n", buildDate)
		fmt.Printf("OS/Arch: %v/%v\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
