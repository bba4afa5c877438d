package handler

import (
	"context"
	"time"

	"github.com/iliyamo/studentdesk/internal/cache"
	"github.com/iliyamo/studentdesk/internal/model"
	"github.com/iliyamo/studentdesk/internal/utils"
)

// requestTimeout bounds the work a single request may do against the
// store and the cache.
const requestTimeout = 10 * time.Second

// UserStore is the credential store as the handlers use it.
// *repository.UserRepo implements it.
type UserStore interface {
	Create(ctx context.Context, nu model.NewUser) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, bool, error)
	FindByPhone(ctx context.Context, phone string) (model.User, bool, error)
	FindByID(ctx context.Context, id string) (model.User, bool, error)
	UpdateProfile(ctx context.Context, id string, f model.ProfileFields) (model.User, error)
	UpdatePassword(ctx context.Context, id, newPassword string) error
	UpdatePhone(ctx context.Context, id, phone string) error
}

// ProfileCache is implemented by *cache.ProfileCache.
type ProfileCache interface {
	GetProfile(ctx context.Context, id string) (model.Profile, bool, error)
	Invalidate(ctx context.Context, id string) error
}

// GrantStore is implemented by *cache.Grants.
type GrantStore interface {
	Issue(ctx context.Context, kind cache.GrantKind, subject string) (string, error)
	Consume(ctx context.Context, kind cache.GrantKind, subject, nonce string) (bool, error)
}

// TokenIssuer is implemented by *utils.TokenIssuer.
type TokenIssuer interface {
	Issue(userID, username string) (utils.AccessToken, error)
}
