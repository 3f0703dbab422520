package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tidemill/promptcanvas/pkg/config"
	"github.com/tidemill/promptcanvas/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "promptcanvas",
	Short: "Node-graph chat client for agent streams",
	Long:  `Command-line client for an agent chat backend: prompts and streamed agent responses are folded into a conversation graph.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cfgFile); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := logger.Init(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .promptcanvas/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("server", "", "agent server base URL")
	viper.BindPFlag("server.base_url", rootCmd.PersistentFlags().Lookup("server"))
}
