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
	"net/http"

	"forge-market-go/internal/models"

	"github.com/gin-gonic/gin"
)

type referenceBody struct {
	Reference string `json:"reference" binding:"required"`
}

type failureBody struct {
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

func (s *Server) ingestDeposit(c *gin.Context) {
	var event models.DepositEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, err)
		return
	}

	outcome, err := s.ledger.IngestDeposit(c.Request.Context(), event)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) getDeposit(c *gin.Context) {
	record, err := s.ledger.GetDeposit(c.Request.Context(), c.Param("signature"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) listUnclaimed(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		badRequest(c, err)
		return
	}

	requests, err := s.ledger.ListUnclaimedWithdrawals(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": requests})
}

func (s *Server) claimWithdrawal(c *gin.Context) {
	request, err := s.ledger.MarkProcessing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (s *Server) checkPayoutSafety(c *gin.Context) {
	check, err := s.ledger.CheckPayoutSafety(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

func (s *Server) setPayoutReference(c *gin.Context) {
	var body referenceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.ledger.SetPayoutReference(c.Request.Context(), c.Param("id"), body.Reference); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) completeWithdrawal(c *gin.Context) {
	var body signatureBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	request, replayed, err := s.ledger.CompleteWithdrawal(c.Request.Context(), c.Param("id"), body.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawal": request, "replayed": replayed})
}

func (s *Server) failWithdrawal(c *gin.Context) {
	var body failureBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.ledger.FailWithdrawal(c.Request.Context(), c.Param("id"), body.Reason, body.Retryable); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
