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
	"context"
	"errors"
	"fmt"

	"forge-market-go/internal/api"
	"forge-market-go/internal/common"
	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers      int
	usersWithPoints int
	totalPoints     int64
	totalStaked     int64
}

func printBalance(user models.User, balance *models.Balance, history []models.BalanceEntry) {
	fmt.Printf("\n┌─ User: %s\n", user.Id)
	fmt.Printf("│  Wallet: %s\n", user.WalletAddress)
	fmt.Printf("│  Points: %s  Staked: %s  (updated %s)\n",
		common.FormatPoints(balance.Points),
		common.FormatPoints(balance.ForgeStaked),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))

	for i, entry := range history {
		isLast := i == len(history)-1
		fmt.Printf("%s %-12s %-11s %12s -> %s  (%s)\n",
			common.BoxPrefix(isLast),
			entry.Kind,
			entry.Asset,
			common.FormatPoints(entry.Change),
			common.FormatPoints(entry.BalanceAfter),
			entry.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func reportUsers(ctx context.Context, ledger *api.LedgerService, users []models.User, historyLimit int) balanceStats {
	stats := balanceStats{}

	for _, user := range users {
		stats.totalUsers++

		balance, err := ledger.GetBalance(ctx, user.Id)
		if err != nil {
			zap.L().Error("Failed to get balance", zap.String("user_id", user.Id), zap.Error(err))
			continue
		}

		var history []models.BalanceEntry
		if historyLimit > 0 {
			history, err = ledger.GetBalanceHistory(ctx, user.Id, historyLimit, 0)
			if err != nil {
				zap.L().Error("Failed to get balance history", zap.String("user_id", user.Id), zap.Error(err))
			}
		}

		printBalance(user, balance, history)
		if balance.Points > 0 {
			stats.usersWithPoints++
		}
		stats.totalPoints += balance.Points
		stats.totalStaked += balance.ForgeStaked
	}
	return stats
}

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Print user balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userFilter, _ := cmd.Flags().GetString("user")
		historyLimit, _ := cmd.Flags().GetInt("history")
		report, _ := cmd.Flags().GetBool("report")
		includeExcluded, _ := cmd.Flags().GetBool("include-excluded")

		db, ledger, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if report {
			return printReport(ctx, db, includeExcluded)
		}

		users, err := common.SelectUsers(ctx, db, userFilter)
		if err != nil {
			return err
		}

		common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)
		stats := reportUsers(ctx, ledger, users, historyLimit)
		common.PrintFooter(fmt.Sprintf("SUMMARY: %d of %d users hold points (%s points, %s staked)",
			stats.usersWithPoints, stats.totalUsers,
			common.FormatPoints(stats.totalPoints), common.FormatPoints(stats.totalStaked)),
			common.DefaultWidth)
		return nil
	},
}

func printReport(ctx context.Context, ledger store.LedgerStore, includeExcluded bool) error {
	reports, err := ledger.ListBalanceReports(ctx, includeExcluded)
	if err != nil {
		return err
	}

	common.PrintHeader("REPORTABLE BALANCES", common.WideWidth)
	for i, r := range reports {
		fmt.Printf("%s %-38s %14s %14s  %s\n",
			common.BoxPrefix(i == len(reports)-1),
			r.UserId,
			common.FormatPoints(r.Points),
			common.FormatPoints(r.ForgeStaked),
			r.WalletAddress)
	}
	common.PrintFooter(fmt.Sprintf("%d balances", len(reports)), common.WideWidth)
	return nil
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check every balance against its entry history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userFilter, _ := cmd.Flags().GetString("user")

		db, ledger, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := common.SelectUsers(ctx, db, userFilter)
		if err != nil {
			return err
		}

		mismatches := 0
		for _, user := range users {
			err := ledger.ReconcileBalance(ctx, user.Id)
			switch {
			case err == nil:
			case errors.Is(err, store.ErrReconciliationMismatch):
				mismatches++
				fmt.Printf("✗ %s: %v\n", user.Id, err)
			default:
				return fmt.Errorf("reconcile %s: %w", user.Id, err)
			}
		}

		if mismatches > 0 {
			return fmt.Errorf("%d of %d balances do not reconcile", mismatches, len(users))
		}
		fmt.Printf("✓ %d balances reconcile\n", len(users))
		return nil
	},
}

func init() {
	balancesCmd.Flags().String("user", "", "Only show this user")
	balancesCmd.Flags().Int("history", 5, "Number of recent balance entries to show per user")
	balancesCmd.Flags().Bool("report", false, "Print the reportable balance list instead")
	balancesCmd.Flags().Bool("include-excluded", false, "Include users excluded from reports")

	reconcileCmd.Flags().String("user", "", "Only reconcile this user")
}
