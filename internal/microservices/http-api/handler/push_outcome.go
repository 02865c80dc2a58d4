package handler

import (
	"errors"

	"villagehub/internal/microservices/websocket"
	"villagehub/internal/queue"
)

func livePushOutcome(err error) string {
	switch {
	case err == nil:
		return "queued"
	case errors.Is(err, queue.ErrQueueCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, websocket.ErrInvalidTenantKey):
		return "invalid_tenant"
	default:
		return "failed"
	}
}
