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
	"time"

	"forge-market-go/internal/chain"
	"forge-market-go/internal/common"
	"forge-market-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create projects, allowlists, entries and presales",
}

var seedProjectCmd = &cobra.Command{
	Use:   "project <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		project, err := db.CreateProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Project %s: %s\n", project.Name, project.Id)
		return nil
	},
}

var seedAllowlistCmd = &cobra.Command{
	Use:   "allowlist <project-id> <name>",
	Short: "Create an allowlist under a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := db.CreateAllowlist(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Allowlist %s: %s\n", list.Name, list.Id)
		return nil
	},
}

var seedEntryCmd = &cobra.Command{
	Use:   "entry <allowlist-id>",
	Short: "Create an allowlist entry, optionally owned by a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		userId, _ := cmd.Flags().GetString("user")
		wallet, _ := cmd.Flags().GetString("wallet")

		var owner, walletAddress *string
		if userId != "" {
			owner = &userId
		}
		if wallet != "" {
			if err := chain.ValidateAddress(wallet); err != nil {
				return fmt.Errorf("invalid wallet address: %w", err)
			}
			walletAddress = &wallet
		}

		db, _, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		entry, err := db.CreateAllowlistEntry(cmd.Context(), args[0], owner, role, walletAddress)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Entry %s (role %s)\n", entry.Id, entry.Role)
		return nil
	},
}

var seedPresaleCmd = &cobra.Command{
	Use:   "presale <name>",
	Short: "Create an active presale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		supply, _ := cmd.Flags().GetInt64("supply")
		maxPerUser, _ := cmd.Flags().GetInt64("max-per-user")
		rawPrice, _ := cmd.Flags().GetString("price")

		price, err := decimal.NewFromString(rawPrice)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", rawPrice, err)
		}

		db, _, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		presale, err := db.CreatePresale(cmd.Context(), store.CreatePresaleParams{
			Name:             args[0],
			Supply:           supply,
			MaxSupplyPerUser: maxPerUser,
			PricePerEntry:    price,
		})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Presale %s: %s (supply %d, %d per user, %s each)\n",
			presale.Name, presale.Id, presale.Supply, presale.MaxSupplyPerUser, presale.PricePerEntry.String())
		return nil
	},
}

var presaleCmd = &cobra.Command{
	Use:   "presales",
	Short: "Inspect presales and sweep stale intents",
}

var presaleStatusCmd = &cobra.Command{
	Use:   "status <presale-id>",
	Short: "Show remaining presale supply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, ledger, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		availability, err := ledger.Availability(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d of %d remaining (%d reserved, %s per entry)\n",
			availability.PresaleId, availability.Remaining, availability.Supply,
			availability.Reserved, availability.Price.String())
		return nil
	},
}

var presaleExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire pending intents older than PRESALE_INTENT_TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, ledger, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := ledger.ExpireStaleIntents(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("✓ Expired %d intents\n", count)
		return nil
	},
}

var presaleUnboundCmd = &cobra.Command{
	Use:   "unbound",
	Short: "List presale payments not bound to any intent and awaiting a refund",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, ledger, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		deposits, err := ledger.UnboundPresalePayments(cmd.Context())
		if err != nil {
			return err
		}

		common.PrintHeader("UNBOUND PRESALE PAYMENTS", common.WideWidth)
		for i, d := range deposits {
			isLast := i == len(deposits)-1
			fmt.Printf("%s %s  user=%s  amount=%s\n",
				common.BoxPrefix(isLast), d.Signature, d.UserId, d.Amount.String())
			fmt.Printf("%s   sender: %s  token: %s  received: %s\n",
				common.BoxDetailPrefix(isLast), d.Sender, d.TokenAddress, d.CreatedAt.Format(time.RFC3339))
		}
		common.PrintFooter(fmt.Sprintf("%d unbound", len(deposits)), common.WideWidth)
		return nil
	},
}

func init() {
	seedEntryCmd.Flags().String("role", "", "Role of the entry")
	seedEntryCmd.Flags().String("user", "", "Owning user id")
	seedEntryCmd.Flags().String("wallet", "", "Wallet address recorded on the entry")
	_ = seedEntryCmd.MarkFlagRequired("role")

	seedPresaleCmd.Flags().Int64("supply", 0, "Total entries available")
	seedPresaleCmd.Flags().Int64("max-per-user", 1, "Maximum entries per user")
	seedPresaleCmd.Flags().String("price", "0", "Price per entry in the presale token")
	_ = seedPresaleCmd.MarkFlagRequired("supply")

	seedCmd.AddCommand(seedProjectCmd, seedAllowlistCmd, seedEntryCmd, seedPresaleCmd)
	presaleCmd.AddCommand(presaleStatusCmd, presaleExpireCmd, presaleUnboundCmd)
}
