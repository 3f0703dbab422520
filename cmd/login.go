package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tidemill/promptcanvas/pkg/auth"
	"github.com/tidemill/promptcanvas/pkg/config"
)

var loginUsername string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain and persist an access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Get()

		username := loginUsername
		if username == "" {
			fmt.Print("Username: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read username: %w", err)
			}
			username = strings.TrimSpace(line)
		}

		fmt.Print("Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimSpace(line)

		token, err := auth.Login(cmd.Context(), settings.AuthURL(), username, password, settings.Server.RequestTimeout)
		if err != nil {
			return err
		}

		tokens, err := auth.NewTokenStore(config.BuildSettingsPath("token.json"))
		if err != nil {
			return err
		}
		if err := tokens.Save(token); err != nil {
			return err
		}

		fmt.Println("Logged in.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username for the token endpoint")
	rootCmd.AddCommand(loginCmd)
}
