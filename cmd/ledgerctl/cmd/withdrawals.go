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

	"forge-market-go/internal/common"

	"github.com/spf13/cobra"
)

var withdrawalsCmd = &cobra.Command{
	Use:   "withdrawals",
	Short: "Inspect and repair withdrawal requests",
}

var withdrawalsFlaggedCmd = &cobra.Command{
	Use:   "flagged",
	Short: "List withdrawals held by a failed safety check or payout",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, ledger, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		requests, err := ledger.ListFlaggedWithdrawals(cmd.Context())
		if err != nil {
			return err
		}

		common.PrintHeader("FLAGGED WITHDRAWALS", common.WideWidth)
		for i, r := range requests {
			isLast := i == len(requests)-1
			fmt.Printf("%s %s  user=%s  amount=%s\n",
				common.BoxPrefix(isLast), r.Id, r.UserId, common.FormatPoints(r.Amount))
			fmt.Printf("%s   error: %s  reference: %s\n",
				common.BoxDetailPrefix(isLast), common.Optional(r.Error), common.Optional(r.PayoutRef))
		}
		common.PrintFooter(fmt.Sprintf("%d flagged", len(requests)), common.WideWidth)
		return nil
	},
}

var withdrawalsResetCmd = &cobra.Command{
	Use:   "reset-stale",
	Short: "Release claims that never reached the payout provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, ledger, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := ledger.ResetStaleClaims(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("✓ Released %d stale claims (older than %s)\n", count, cfg.Withdrawal.ClaimTimeout)
		return nil
	},
}

var withdrawalsResolveCmd = &cobra.Command{
	Use:   "resolve <withdrawal-id>",
	Short: "Clear the error on a flagged withdrawal and return it to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, ledger, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := ledger.ResolveWithdrawal(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Withdrawal %s returned to the queue\n", args[0])
		return nil
	},
}

func init() {
	withdrawalsCmd.AddCommand(withdrawalsFlaggedCmd, withdrawalsResetCmd, withdrawalsResolveCmd)
}
