package utils

import (
	"context"
	"time"
)

const revokedTokenPrefix = "jwt:blacklist:"

// IsTokenRevoked reports whether the auth service revoked token before its expiry. The
// auth service writes the revocation keys; a Redis failure is treated as not revoked so
// an outage does not lock every user out.
func IsTokenRevoked(ctx context.Context, token string) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	n, err := rc.Exists(ctx, revokedTokenPrefix+token).Result()
	if err != nil {
		if Sugar != nil {
			Sugar.Debugf("revocation lookup failed: %v", err)
		}
		return false
	}
	return n > 0
}
