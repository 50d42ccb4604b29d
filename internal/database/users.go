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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"go.uber.org/zap"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Service) CreateUser(ctx context.Context, userId, walletAddress string) (*models.User, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidInput)
	}

	user := &models.User{Id: userId, WalletAddress: walletAddress, CreatedAt: now()}
	if _, err := s.db.ExecContext(ctx, queryInsertUser, user.Id, user.WalletAddress, user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %s already exists", store.ErrInvalidInput, userId)
		}
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	zap.L().Info("User created", zap.String("user_id", userId))
	return user, nil
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.Id, &user.WalletAddress, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return getUser(ctx, s.db, userId)
}

func getUser(ctx context.Context, q queryer, userId string) (*models.User, error) {
	var user models.User
	err := q.QueryRowContext(ctx, queryGetUserById, userId).Scan(&user.Id, &user.WalletAddress, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		return nil, fmt.Errorf("unable to query user by ID: %w", err)
	}
	return &user, nil
}

func (s *Service) SetUserPolicy(ctx context.Context, userId string, excludeFromReports bool, note string) error {
	if _, err := getUser(ctx, s.db, userId); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, queryUpsertUserPolicy, userId, excludeFromReports, note, now()); err != nil {
		return fmt.Errorf("unable to store user policy: %w", err)
	}

	zap.L().Info("User policy updated",
		zap.String("user_id", userId),
		zap.Bool("exclude_from_reports", excludeFromReports))
	return nil
}

// GetUserPolicy returns the stored policy, or a default policy when none was set.
func (s *Service) GetUserPolicy(ctx context.Context, userId string) (*models.UserPolicy, error) {
	policy := models.UserPolicy{UserId: userId}
	err := s.db.QueryRowContext(ctx, queryGetUserPolicy, userId).
		Scan(&policy.UserId, &policy.ExcludeFromReports, &policy.Note, &policy.UpdatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unable to query user policy: %w", err)
	}
	return &policy, nil
}
