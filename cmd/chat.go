package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tidemill/promptcanvas/pkg/headless"
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Submit a prompt and stream the agent's response",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		prompt := strings.Join(args, " ")

		runner, err := headless.NewRunner()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing chat: %v\n", err)
			os.Exit(1)
		}

		if err := runner.Run(cmd.Context(), prompt); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
