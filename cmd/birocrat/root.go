package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "birocrat",
	Short: "Birocrat runs dynamic forms driven by Lua scripts",
	Long: `Birocrat turns a Lua driver script into an interactive form session.
The script decides each next question from the answers so far; birocrat keeps
the history, lets you go back, and persists sessions for later.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
}
