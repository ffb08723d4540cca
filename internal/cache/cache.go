package cache

import (
	"context"
	"strings"

	"github.com/ppiankov/qidlink/internal/model"
)

// DetailSource is the lookup being memoized
type DetailSource interface {
	Entity(ctx context.Context, id string) (*model.EntityDetail, error)
}

// Observer is notified of every memo lookup ("hit", "miss" or "error")
type Observer func(result string)

// CacheKey generates a cache key for an entity id
func CacheKey(id string) string {
	return "qidlink:v1:entity:" + strings.ToUpper(strings.TrimSpace(id))
}
