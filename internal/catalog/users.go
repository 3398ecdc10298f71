package catalog

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aethra/backoffice/internal/auth"
	"github.com/aethra/backoffice/internal/engine"
	"github.com/aethra/backoffice/internal/logger"
	"github.com/aethra/backoffice/internal/models"
)

const userPasswordColumn = "password"

// userHooks hash passwords before they reach storage
func userHooks() engine.Hooks[models.User] {
	return engine.Hooks[models.User]{
		BeforeCreate: func(_ context.Context, u *models.User) error {
			if auth.IsHashed(u.Password) {
				return nil
			}
			hash, err := auth.HashPassword(u.Password)
			if err != nil {
				return err
			}
			u.Password = hash
			return nil
		},
		BeforeUpdate: func(_ context.Context, _ *models.User, data map[string]interface{}) error {
			pw, ok := data[userPasswordColumn].(string)
			if !ok || auth.IsHashed(pw) {
				return nil
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			data[userPasswordColumn] = hash
			return nil
		},
	}
}

// persistUser creates an imported user. The import template carries no
// password column; such users get a random password and must have it reset
// before they can log in.
func persistUser(ctx context.Context, svc *engine.Service[models.User], u *models.User, row engine.Row, uctx engine.UserContext) error {
	if u.Password == "" {
		u.Password = uuid.NewString()
		logger.FromContext(ctx).Info("imported user without password",
			zap.Int("row", row.Number),
			zap.String("login_id", u.LoginID),
		)
	}
	_, err := svc.Create(ctx, u, uctx)
	return err
}
