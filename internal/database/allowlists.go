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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", store.ErrInvalidInput)
	}

	project := &models.Project{Id: uuid.New().String(), Name: name, CreatedAt: now()}
	if _, err := s.db.ExecContext(ctx, queryInsertProject, project.Id, project.Name, project.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	zap.L().Info("Project created", zap.String("project_id", project.Id), zap.String("name", name))
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return getProject(ctx, s.db, id)
}

func getProject(ctx context.Context, q queryer, id string) (*models.Project, error) {
	var p models.Project
	err := q.QueryRowContext(ctx, queryGetProject, id).Scan(&p.Id, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

func (s *Service) CreateAllowlist(ctx context.Context, projectId, name string) (*models.Allowlist, error) {
	if _, err := getProject(ctx, s.db, projectId); err != nil {
		return nil, err
	}

	allowlist := &models.Allowlist{Id: uuid.New().String(), ProjectId: projectId, Name: name}
	if _, err := s.db.ExecContext(ctx, queryInsertAllowlist, allowlist.Id, projectId, name); err != nil {
		return nil, fmt.Errorf("failed to insert allowlist: %w", err)
	}
	return allowlist, nil
}

func (s *Service) CreateAllowlistEntry(ctx context.Context, allowlistId string, userId *string, role string, walletAddress *string) (*models.AllowlistEntry, error) {
	entry := &models.AllowlistEntry{
		Id:            uuid.New().String(),
		AllowlistId:   allowlistId,
		UserId:        userId,
		Role:          role,
		WalletAddress: walletAddress,
	}

	_, err := s.db.ExecContext(ctx, queryInsertAllowlistEntry, entry.Id, allowlistId, userId, role, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to insert allowlist entry: %w", err)
	}
	return entry, nil
}

// HoldsEntry reports whether userId owns an entry for the project. A nil
// roleId accepts an entry of any role.
func (s *Service) HoldsEntry(ctx context.Context, userId, projectId string, roleId *string) (bool, error) {
	_, err := findHeldEntry(ctx, s.db, userId, projectId, roleId)
	if errors.Is(err, store.ErrNotHolder) {
		return false, nil
	}
	return err == nil, err
}

func findHeldEntry(ctx context.Context, q queryer, userId, projectId string, roleId *string) (string, error) {
	var entryId string
	err := q.QueryRowContext(ctx, queryFindHeldEntry, userId, projectId, roleId, roleId).Scan(&entryId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotHolder
		}
		return "", fmt.Errorf("failed to look up allowlist entry: %w", err)
	}
	return entryId, nil
}

func (s *Service) ListEntriesByOwner(ctx context.Context, userId string) ([]models.AllowlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryListEntriesByOwner, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowlist entries: %w", err)
	}
	defer closeRows(rows)

	var entries []models.AllowlistEntry
	for rows.Next() {
		var e models.AllowlistEntry
		if err := rows.Scan(&e.Id, &e.AllowlistId, &e.UserId, &e.Role, &e.WalletAddress); err != nil {
			return nil, fmt.Errorf("failed to scan allowlist entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allowlist entry rows: %w", err)
	}
	return entries, nil
}
