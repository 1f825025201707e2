package auth

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/accountd/internal/cache"
	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

// twoFactorFlag cachea "el usuario tiene 2FA confirmado" para el gate.
type twoFactorFlag struct {
	cache cache.Client
	users repository.UserRepository
	ttl   time.Duration
	group singleflight.Group
}

func flagKey(userID string) string { return "tfa:" + userID }

func (f *twoFactorFlag) Enabled(ctx context.Context, userID string) (bool, error) {
	v, err := f.cache.Get(ctx, flagKey(userID))
	if err == nil {
		return v == "1", nil
	}
	if !cache.IsNotFound(err) {
		logger.From(ctx).Warn("two factor flag cache read failed", logger.Err(err))
	}

	// un solo load por usuario aunque lleguen varios requests juntos
	res, err, _ := f.group.Do(userID, func() (any, error) {
		u, err := f.users.GetByID(ctx, userID)
		if err != nil {
			return "", err
		}
		v := "0"
		if u.TwoFactor.Enabled() {
			v = "1"
		}
		if err := f.cache.Set(ctx, flagKey(userID), v, f.ttl); err != nil {
			logger.From(ctx).Warn("two factor flag cache write failed", logger.Err(err))
		}
		return v, nil
	})
	if err != nil {
		return false, err
	}
	return res.(string) == "1", nil
}

func (f *twoFactorFlag) Invalidate(ctx context.Context, userID string) {
	f.group.Forget(userID)
	if err := f.cache.Delete(ctx, flagKey(userID)); err != nil {
		logger.From(ctx).Warn("two factor flag invalidate failed", logger.Err(err))
	}
}
