package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/birocrat"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of birocrat",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("birocrat version %s\n", strings.TrimSpace(birocrat.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
