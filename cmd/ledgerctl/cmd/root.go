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
	"fmt"
	"os"

	"forge-market-go/internal/api"
	"forge-market-go/internal/common"
	"forge-market-go/internal/config"
	"forge-market-go/internal/database"
	"forge-market-go/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg           *models.Config
	loggerCleanup func()
)

var rootCmd = &cobra.Command{
	Use:           "ledgerctl",
	Short:         "Operator tooling for the forge marketplace ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		_, loggerCleanup = common.InitializeLogger()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if loggerCleanup != nil {
			loggerCleanup()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Override DATABASE_PATH")
	cobra.OnInitialize(func() {
		if path, _ := rootCmd.PersistentFlags().GetString("db"); path != "" {
			_ = os.Setenv("DATABASE_PATH", path)
		}
	})

	rootCmd.AddCommand(migrateCmd, userCmd, balancesCmd, reconcileCmd, withdrawalsCmd, seedCmd, presaleCmd)
}

// openLedger opens the database for commands that never ingest deposits, so
// the token routes file is not required.
func openLedger(ctx context.Context) (*database.Service, *api.LedgerService, error) {
	zap.L().Info("Connecting to database", zap.String("path", cfg.Database.Path))
	db, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, api.NewLedgerService(db, config.TokenRoutes{}, cfg), nil
}
