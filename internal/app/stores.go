// Package app assembles stores and services for the binaries in cmd/.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"hcadmin/internal/cache"
	"hcadmin/internal/messages"
	"hcadmin/internal/repository"
	"hcadmin/internal/repository/memory"
	"hcadmin/internal/service"
)

type Stores struct {
	Users       service.UserStore
	Otps        service.OtpStore
	Sessions    service.SessionStore
	Tokens      service.RefreshTokenStore
	Grants      service.GrantStore
	Attachments service.AttachmentStore
	Messages    messages.Source
}

var (
	_ service.UserStore         = (*repository.UserRepository)(nil)
	_ service.OtpStore          = (*repository.OtpRepository)(nil)
	_ service.SessionStore      = (*repository.SessionRepository)(nil)
	_ service.RefreshTokenStore = (*repository.RefreshTokenRepository)(nil)
	_ service.AttachmentStore   = (*repository.AttachmentRepository)(nil)
	_ service.GrantStore        = (*cache.GrantStore)(nil)
	_ messages.Source           = (*repository.MessageRepository)(nil)
)

func PostgresStores(pool *pgxpool.Pool, redisClient *redis.Client) Stores {
	stores := Stores{
		Users:       repository.NewUserRepository(pool),
		Otps:        repository.NewOtpRepository(pool),
		Sessions:    repository.NewSessionRepository(pool),
		Tokens:      repository.NewRefreshTokenRepository(pool),
		Attachments: repository.NewAttachmentRepository(pool),
		Messages:    repository.NewMessageRepository(pool),
	}
	stores.Grants = grantStore(redisClient)
	return stores
}

// MemoryStores keeps everything in process. Data is lost on restart.
func MemoryStores(redisClient *redis.Client) Stores {
	store := memory.NewStore()
	return Stores{
		Users:       store.Users(),
		Otps:        store.Otps(),
		Sessions:    store.Sessions(),
		Tokens:      store.RefreshTokens(),
		Grants:      grantStore(redisClient),
		Attachments: store.Attachments(),
		Messages:    store.Messages(),
	}
}

func grantStore(redisClient *redis.Client) service.GrantStore {
	if redisClient == nil {
		return memory.NewGrantStore()
	}
	return cache.NewGrantStore(redisClient)
}
