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

	"forge-market-go/internal/store"

	"github.com/gin-gonic/gin"
)

type withdrawalBody struct {
	Destination string `json:"destination" binding:"required"`
}

type orderBody struct {
	TradeType  string `json:"trade_type" binding:"required"`
	ProjectId  string `json:"project_id" binding:"required"`
	RoleId     string `json:"role_id"`
	PointsCost int64  `json:"points_cost"`
}

type intentBody struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	EntryAmount   int64  `json:"entry_amount"`
}

type signatureBody struct {
	Signature string `json:"signature" binding:"required"`
}

func (s *Server) getBalance(c *gin.Context) {
	balance, err := s.ledger.GetBalance(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (s *Server) getBalanceHistory(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		badRequest(c, err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		badRequest(c, err)
		return
	}

	entries, err := s.ledger.GetBalanceHistory(c.Request.Context(), currentUser(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) listEntries(c *gin.Context) {
	entries, err := s.ledger.ListEntries(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) requestWithdrawal(c *gin.Context) {
	var body withdrawalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	request, err := s.ledger.RequestWithdrawal(c.Request.Context(), currentUser(c), body.Destination)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (s *Server) listWithdrawals(c *gin.Context) {
	requests, err := s.ledger.ListUserWithdrawals(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": requests})
}

func (s *Server) placeOrder(c *gin.Context) {
	var body orderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	record, settlement, err := s.ledger.PlaceOrder(c.Request.Context(), store.CreateOrderParams{
		UserId:     currentUser(c),
		TradeType:  body.TradeType,
		ProjectId:  body.ProjectId,
		PointsCost: body.PointsCost,
		RoleId:     optionalString(body.RoleId),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": record, "settlement": settlement})
}

func (s *Server) listOrders(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		badRequest(c, err)
		return
	}

	filter := store.OrderFilter{
		ProjectId: c.Query("project_id"),
		RoleId:    optionalString(c.Query("role_id")),
		TradeType: c.Query("trade_type"),
		OnlyOpen:  c.Query("open") == "true",
		Limit:     limit,
	}
	if c.Query("mine") == "true" {
		filter.CreatedBy = currentUser(c)
	}

	records, err := s.ledger.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": records})
}

func (s *Server) getOrder(c *gin.Context) {
	record, err := s.ledger.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) delistOrder(c *gin.Context) {
	record, changed, err := s.ledger.Delist(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": record, "changed": changed})
}

func (s *Server) bookTop(c *gin.Context) {
	floor, bid, err := s.ledger.BookTop(c.Request.Context(), c.Param("id"), optionalString(c.Query("role_id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"floor": floor, "best_bid": bid})
}

func (s *Server) listActivity(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		badRequest(c, err)
		return
	}

	activity, err := s.ledger.ListActivity(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": activity})
}

func (s *Server) presaleAvailability(c *gin.Context) {
	availability, err := s.ledger.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

func (s *Server) createIntent(c *gin.Context) {
	var body intentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	intent, err := s.ledger.CreateIntent(c.Request.Context(), store.CreateIntentParams{
		PresaleId:     c.Param("id"),
		UserId:        currentUser(c),
		WalletAddress: body.WalletAddress,
		EntryAmount:   body.EntryAmount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}

func (s *Server) getIntent(c *gin.Context) {
	intent, err := s.ledger.GetIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if intent.UserId != currentUser(c) {
		respondError(c, store.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (s *Server) confirmIntent(c *gin.Context) {
	var body signatureBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	intent, err := s.ledger.ConfirmIntent(c.Request.Context(), c.Param("id"), currentUser(c), body.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (s *Server) cancelIntent(c *gin.Context) {
	intent, err := s.ledger.CancelIntent(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}
