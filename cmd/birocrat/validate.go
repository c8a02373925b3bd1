package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/birocrat/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check a form's driver script",
	Long:  `Loads the script and performs the initial poll, reporting the first outcome.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		if err := cli.Validate(cmd.Context(), path); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Form is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
