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
package server

import (
	"errors"
	"net/http"
	"strconv"

	"forge-market-go/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var conflictErrors = []error{
	store.ErrZeroBalance,
	store.ErrInsufficientBalance,
	store.ErrWithdrawalOutstanding,
	store.ErrAlreadyClaimed,
	store.ErrNotClaimed,
	store.ErrAlreadyProcessed,
	store.ErrSignatureConflict,
	store.ErrDuplicateListing,
	store.ErrNotListed,
	store.ErrPresaleClosed,
	store.ErrSupplyExceeded,
	store.ErrUserLimitExceeded,
	store.ErrPaymentInvalid,
	store.ErrConcurrentModification,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrForbidden), errors.Is(err, store.ErrNotHolder):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": publicMessage(status, err)})
}

// publicMessage is the error text returned to callers. Validation errors keep
// their detail; any other class is reported as its bare sentinel, without the
// record ids the store wraps around it.
func publicMessage(status int, err error) string {
	if status == http.StatusBadRequest {
		return err.Error()
	}
	known := append([]error{
		store.ErrForbidden,
		store.ErrNotHolder,
		store.ErrUserNotFound,
		store.ErrNotFound,
	}, conflictErrors...)
	for _, target := range known {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return http.StatusText(status)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// intQuery reads an optional integer query parameter
func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("invalid " + key)
	}
	return value, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
