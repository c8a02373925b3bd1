package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/birocrat/internal/cli"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Run a form interactively",
	Long: `Starts a form session on the terminal. The path may be a bundle
directory containing form.yaml or a bare Lua script.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		headless, _ := cmd.Flags().GetBool("headless")
		jsonMode, _ := cmd.Flags().GetBool("json")
		debug, _ := cmd.Flags().GetBool("debug")
		params, _ := cmd.Flags().GetStringArray("param")
		paramsRaw, _ := cmd.Flags().GetString("params")
		sessionID, _ := cmd.Flags().GetString("session")
		fresh, _ := cmd.Flags().GetBool("fresh")

		opts := cli.RunOptions{
			Path:      path,
			Headless:  headless,
			JSON:      jsonMode,
			Debug:     debug,
			Params:    params,
			ParamsRaw: paramsRaw,
			SessionID: sessionID,
			Fresh:     fresh,
		}

		if err := cli.Execute(opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// addRunFlags registers the run flag set. The root command aliases runCmd.Run,
// so it needs the same flags or bare invocations would read zero values.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("headless", false, "Plain line-based IO, no prompts or rendering")
	cmd.Flags().Bool("json", false, "NDJSON input/output for embedding")
	cmd.Flags().StringArray("param", nil, "Driver parameter as key=value (repeatable)")
	cmd.Flags().String("params", "", "Driver parameters as a JSON object")
	cmd.Flags().StringP("session", "s", "", "Session ID for persistence and resume")
	cmd.Flags().Bool("fresh", false, "Discard any stored session before starting")
}

func init() {
	rootCmd.AddCommand(runCmd)

	addRunFlags(runCmd)
	addRunFlags(rootCmd)

	rootCmd.Run = runCmd.Run
	rootCmd.Args = runCmd.Args
}
