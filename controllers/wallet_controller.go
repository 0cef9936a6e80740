package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rewards/utils"
)

// WalletController serves balance and ledger reads.
type WalletController struct {
	svc RewardService
}

// NewWalletController creates a new WalletController instance.
func NewWalletController(svc RewardService) *WalletController {
	return &WalletController{svc: svc}
}

// Balances lists the caller's balance per currency.
func (w *WalletController) Balances(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	balances, err := w.svc.Balances(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load balances")
		return
	}
	utils.Success(ctx, gin.H{"balances": balances})
}

// Ledger returns the caller's ledger entries, newest first.
func (w *WalletController) Ledger(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	entries, total, err := w.svc.History(ctx.Request.Context(), userID, page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load ledger")
		return
	}

	utils.Success(ctx, gin.H{
		"items":       entries,
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": totalPages(total, pageSize),
	})
}
