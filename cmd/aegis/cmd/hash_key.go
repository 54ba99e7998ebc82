package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegis-authz/aegis/internal/domain/auth"
)

var hashKeyArgon2 bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Hash an API key for the auth config",
	Long: `Hash an API key for use in the auth.api_keys.key_hash config
field. The default output is a hex SHA-256 digest; --argon2 produces a
salted argon2id hash instead.

Security note: the key will appear in shell history. Consider clearing
history after use or passing an environment variable:
  aegis hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hashKeyArgon2 {
			hash, err := auth.HashKeyArgon2(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), auth.HashKey(args[0]))
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&hashKeyArgon2, "argon2", false, "produce an argon2id hash instead of SHA-256")
	rootCmd.AddCommand(hashKeyCmd)
}
