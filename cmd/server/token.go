package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/auth"
	"github.com/optik-pos/api/internal/enum"
	"github.com/spf13/cobra"
)

// Staff accounts live outside this service; tokens are minted here for
// integration and local testing.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed staff access token",
	Example: `  optik token --staff s-17 --shop 6f1c... --role MANAGER
  optik token --staff s-2 --shop 6f1c... --ttl 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		staff, _ := cmd.Flags().GetString("staff")
		shop, _ := cmd.Flags().GetString("shop")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		shopID, err := uuid.Parse(shop)
		if err != nil {
			return fmt.Errorf("invalid --shop: %w", err)
		}
		switch role {
		case enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleCashier, enum.UserRoleOptician:
		default:
			return fmt.Errorf("invalid --role %q", role)
		}

		token, err := auth.GenerateToken(cfg.JWTSecret, staff, shopID, role, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("staff", "", "Staff ID placed in the token")
	tokenCmd.Flags().String("shop", "", "Shop UUID the token is scoped to")
	tokenCmd.Flags().String("role", enum.UserRoleCashier, "OWNER, MANAGER, CASHIER or OPTICIAN")
	tokenCmd.Flags().Duration("ttl", auth.DefaultTTL, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("staff")
	_ = tokenCmd.MarkFlagRequired("shop")
}
