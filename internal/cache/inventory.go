package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "user:%d"
	FlatKeyPrefix       = "flat:%d"
	FlatMessagesPrefix  = "flat:%d:messages"
	ResetTokenKeyPrefix = "pwreset:%s"
)

const (
	UserTTL         = 5 * time.Minute
	FlatTTL         = 10 * time.Minute
	FlatMessagesTTL = 2 * time.Minute
	ResetTokenTTL   = 30 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func FlatKey(flatID uint) string {
	return fmt.Sprintf(FlatKeyPrefix, flatID)
}

func FlatMessagesKey(flatID uint) string {
	return fmt.Sprintf(FlatMessagesPrefix, flatID)
}

func ResetTokenKey(token string) string {
	return fmt.Sprintf(ResetTokenKeyPrefix, token)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateFlat(ctx context.Context, flatID uint) {
	Invalidate(ctx, FlatKey(flatID))
	Invalidate(ctx, FlatMessagesKey(flatID))
}
