package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/cppla/rewards/controllers/mock"
	"github.com/cppla/rewards/models"
)

func TestWalletBalances(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mock.NewMockRewardService(ctrl)
	svc.EXPECT().Balances(gomock.Any(), uint(4)).Return([]models.Balance{
		{UserID: 4, Currency: models.CurrencyCoin, Available: decimal.NewFromInt(26)},
	}, nil)

	w, env := perform(t, newTestRouter(svc, 4), http.MethodGet, "/wallet/balances", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var data struct {
		Balances []models.Balance `json:"balances"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Balances) != 1 || !data.Balances[0].Available.Equal(decimal.NewFromInt(26)) {
		t.Errorf("balances = %+v", data.Balances)
	}
}

func TestWalletLedgerPagination(t *testing.T) {
	tests := []struct {
		query    string
		page     int
		size     int
		total    int64
		wantPage int
	}{
		{"", 1, 20, 0, 0},
		{"?page=2&page_size=10", 2, 10, 25, 3},
		{"?page=-1&page_size=500", 1, 20, 41, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mock.NewMockRewardService(ctrl)
			svc.EXPECT().History(gomock.Any(), uint(4), tt.page, tt.size).Return([]models.LedgerEntry{}, tt.total, nil)

			w, env := perform(t, newTestRouter(svc, 4), http.MethodGet, "/wallet/ledger"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var data struct {
				Page       int   `json:"page"`
				PageSize   int   `json:"page_size"`
				Total      int64 `json:"total"`
				TotalPages int   `json:"total_pages"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatalf("decode data: %v", err)
			}
			if data.Page != tt.page || data.PageSize != tt.size || data.Total != tt.total || data.TotalPages != tt.wantPage {
				t.Errorf("data = %+v", data)
			}
		})
	}
}
