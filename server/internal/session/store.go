package session

import (
	"context"

	"novel-engine/server/internal/model"
)

// Store 保存会话存档。Get 在会话不存在时返回 ErrNotFound。
type Store interface {
	Get(ctx context.Context, id string) (*model.SessionState, error)
	Save(ctx context.Context, s *model.SessionState) error
}
