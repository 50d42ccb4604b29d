/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cmd

import (
	"fmt"

	"forge-market-go/internal/chain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage marketplace users",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user with a zero balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		userId, _ := cmd.Flags().GetString("id")
		wallet, _ := cmd.Flags().GetString("wallet")

		if err := chain.ValidateAddress(wallet); err != nil {
			return fmt.Errorf("invalid wallet address: %w", err)
		}
		if userId == "" {
			userId = uuid.New().String()
		}

		db, _, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := db.CreateUser(cmd.Context(), userId, wallet)
		if err != nil {
			return err
		}

		zap.L().Info("User created", zap.String("user_id", user.Id))
		fmt.Printf("✓ Created user %s (wallet %s)\n", user.Id, user.WalletAddress)
		return nil
	},
}

var userPolicyCmd = &cobra.Command{
	Use:   "policy <user-id>",
	Short: "Set operational flags for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exclude, _ := cmd.Flags().GetBool("exclude-from-reports")
		note, _ := cmd.Flags().GetString("note")

		db, _, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.SetUserPolicy(cmd.Context(), args[0], exclude, note); err != nil {
			return err
		}
		fmt.Printf("✓ Policy updated for %s (exclude_from_reports=%t)\n", args[0], exclude)
		return nil
	},
}

func init() {
	userAddCmd.Flags().String("id", "", "User id (default: random UUID)")
	userAddCmd.Flags().String("wallet", "", "Base58 wallet address")
	_ = userAddCmd.MarkFlagRequired("wallet")

	userPolicyCmd.Flags().Bool("exclude-from-reports", false, "Hide the user from balance reports")
	userPolicyCmd.Flags().String("note", "", "Free-form note")

	userCmd.AddCommand(userAddCmd, userPolicyCmd)
}
