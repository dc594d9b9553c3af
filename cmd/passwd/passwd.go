package passwd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hush-home/hushd/internal/api"
	"github.com/hush-home/hushd/internal/conf"
)

// Command returns a cobra command that hashes a basic auth password
func Command(settings *conf.Settings) *cobra.Command {
	var (
		save     bool
		username string
	)

	cmd := &cobra.Command{
		Use:   "passwd [password]",
		Short: "Hash a password for REST API basic auth",
		Long: `Generate a bcrypt hash for the REST API basic auth password.

Without --save the hash is printed for manual placement under
security.basicauth.password in the config file. With --save the hash is
written to the config file and basic auth is enabled.

Examples:
  hushd passwd hunter2
  hushd passwd --save --username=admin hunter2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := api.HashPassword(args[0])
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			if !save {
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			}

			settings.Security.BasicAuth.Password = hash
			settings.Security.BasicAuth.Enabled = true
			if username != "" {
				settings.Security.BasicAuth.Username = username
			}
			if settings.Security.BasicAuth.Username == "" {
				settings.Security.BasicAuth.Username = "hushd"
			}

			if err := conf.SaveSettings(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Basic auth enabled for user %q, password hash saved\n",
				settings.Security.BasicAuth.Username)
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Write the hash into the config file and enable basic auth")
	cmd.Flags().StringVar(&username, "username", "", "Login user to set together with --save")

	return cmd
}
