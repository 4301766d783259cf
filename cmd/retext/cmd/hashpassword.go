package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Generate a bcrypt hash for the server password",
	Long: `Read a password from stdin and print its bcrypt hash.

Put the hash in config.toml under [server] password_hash, or export it as
RETEXT_PASSWORD_HASH. Example:

  echo -n 'secret' | retext hash-password`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(cmd.InOrStdin())
		password, err := reader.ReadString('\n')
		if err != nil && password == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(password, "\r\n")
		if password == "" {
			return fmt.Errorf("empty password")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
