package repository

import (
	"context"

	"BarForge/internal/domain/models"
)

// BarStream is a live daily-bar feed (websocket vendor connection).
type BarStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.RawBar, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}
