package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rewards/services"
	"github.com/cppla/rewards/utils"
)

// RewardsController handles the faucet, wheel, chest and status endpoints.
type RewardsController struct {
	svc RewardService
}

// NewRewardsController creates a new controller instance.
func NewRewardsController(svc RewardService) *RewardsController {
	return &RewardsController{svc: svc}
}

// Status returns the combined faucet, wheel, chest, level and wallet state.
func (r *RewardsController) Status(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	st, err := r.svc.Status(ctx.Request.Context(), userID)
	if err != nil {
		writeEngineError(ctx, err, nil)
		return
	}
	utils.Success(ctx, st)
}

// ClaimFaucet records a faucet claim and credits the day's reward.
func (r *RewardsController) ClaimFaucet(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	device := strings.TrimSpace(ctx.GetHeader(DeviceHeader))
	if len(device) > 128 {
		device = device[:128]
	}
	res, err := r.svc.Claim(ctx.Request.Context(), services.ClaimRequest{
		UserID:            userID,
		IP:                ctx.ClientIP(),
		DeviceFingerprint: device,
	})
	if err != nil {
		writeEngineError(ctx, err, nil)
		return
	}
	utils.Success(ctx, res)
}

// SpinWheel spends one spin and pays out the selected reward.
func (r *RewardsController) SpinWheel(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	res, err := r.svc.Spin(ctx.Request.Context(), userID)
	if err != nil {
		writeEngineError(ctx, err, nil)
		return
	}
	utils.Success(ctx, res)
}

// OpenChest spends one chest. An exhausted re-roll still consumes the chest and the
// rejection carries the recorded opening.
func (r *RewardsController) OpenChest(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	res, err := r.svc.Open(ctx.Request.Context(), userID)
	if err != nil {
		var opened interface{}
		if res != nil {
			opened = res
		}
		writeEngineError(ctx, err, opened)
		return
	}
	utils.Success(ctx, res)
}
