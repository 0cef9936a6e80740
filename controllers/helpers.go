package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rewards/middleware"
	"github.com/cppla/rewards/services"
	"github.com/cppla/rewards/utils"
)

// DeviceHeader carries the client device fingerprint recorded with faucet claims.
const DeviceHeader = "X-Device-Fingerprint"

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	if total == 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

// writeEngineError maps engine errors onto the response envelope. result, when not nil,
// is returned alongside a rejection so clients can show the consumed slot.
func writeEngineError(ctx *gin.Context, err error, result interface{}) {
	var ne *services.NotEligibleError
	switch {
	case errors.As(err, &ne):
		data := gin.H{"reason": ne.Reason}
		if ne.RetryAfter > 0 {
			secs := int64(math.Ceil(ne.RetryAfter.Seconds()))
			data["retry_after_seconds"] = secs
			ctx.Header("Retry-After", strconv.FormatInt(secs, 10))
		}
		if ne.Remaining > 0 {
			data["remaining"] = ne.Remaining
		}
		if result != nil {
			data["result"] = result
		}
		if isCooldown(ne.Reason) {
			utils.ErrorWithData(ctx, http.StatusTooManyRequests, 42910, ne.Error(), data)
			return
		}
		utils.ErrorWithData(ctx, http.StatusConflict, 40920, ne.Error(), data)
	case services.IsConfigurationError(err):
		utils.Error(ctx, http.StatusServiceUnavailable, 50310, "rewards are not configured")
	case errors.Is(err, services.ErrConcurrencyConflict):
		utils.Error(ctx, http.StatusConflict, 40930, "request conflicted with another update, retry")
	case errors.Is(err, services.ErrUserNotFound):
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
	default:
		if utils.Sugar != nil {
			utils.Sugar.Errorf("reward request failed path=%s err=%v", ctx.FullPath(), err)
		}
		utils.Error(ctx, http.StatusInternalServerError, 50020, "internal error")
	}
}

func isCooldown(r services.Reason) bool {
	switch r {
	case services.ReasonCooldownNotExpired, services.ReasonChestCooldown, services.ReasonRewardCooldown:
		return true
	}
	return false
}
