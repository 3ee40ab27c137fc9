package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/netkeeper/internal/core/auth"
	"github.com/solatis/netkeeper/internal/core/config"
	"github.com/solatis/netkeeper/internal/types"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key; the key is printed once",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke API_KEY_ID",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		if err := auth.Revoke(cmd.Context(), store.Queries(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
		return nil
	},
}

func init() {
	apikeyCreateCmd.Flags().String("name", "", "key name")
	apikeyCreateCmd.Flags().String("user-type", "admin", "capability (user, admin, super-admin)")
	_ = apikeyCreateCmd.MarkFlagRequired("name")

	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd)
	rootCmd.AddCommand(apikeyCmd)
}

func parseUserType(s string) (types.Capability, error) {
	for _, c := range []types.Capability{types.ReadOnlyUser, types.Admin, types.SuperAdmin} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown user type %q (expected user, admin or super-admin)", s)
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	userType, _ := cmd.Flags().GetString("user-type")

	capability, err := parseUserType(userType)
	if err != nil {
		return err
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}

	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	key, err := auth.Issue(cmd.Context(), store.Queries(), secrets, name, capability)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:        %s\n", key.ID)
	fmt.Fprintf(out, "name:      %s\n", key.Name)
	fmt.Fprintf(out, "user type: %s\n", key.Capability)
	fmt.Fprintf(out, "key:       %s\n", key.Key)
	return nil
}
