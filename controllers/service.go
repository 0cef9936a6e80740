package controllers

import (
	"context"

	"github.com/cppla/rewards/models"
	"github.com/cppla/rewards/services"
)

//go:generate mockgen -destination=mock/reward_service.go -package=mock github.com/cppla/rewards/controllers RewardService

// RewardService is the part of the reward engines the HTTP layer uses.
type RewardService interface {
	Status(ctx context.Context, userID uint) (*services.Status, error)
	Claim(ctx context.Context, req services.ClaimRequest) (*services.ClaimResult, error)
	Spin(ctx context.Context, userID uint) (*services.SpinResult, error)
	Open(ctx context.Context, userID uint) (*services.OpenResult, error)
	Balances(ctx context.Context, userID uint) ([]models.Balance, error)
	History(ctx context.Context, userID uint, page, size int) ([]models.LedgerEntry, int64, error)
}
