package memory

import (
	"time"

	"helmet-compliance-be/internal/entity"
	"helmet-compliance-be/internal/pkg/logger"

	"github.com/patrickmn/go-cache"
)

// Closer is anything a repository must shut down when it drops the entry.
type Closer interface {
	Close() error
}

// SessionRepository keeps live sessions in memory with a sliding TTL. Entries that expire
// or are deleted are closed, which cancels their in-flight work.
type SessionRepository[T Closer] struct {
	cache  *cache.Cache
	logger logger.ILogger
	module string
}

func NewSessionRepository[T Closer](module string, ttl, cleanupInterval time.Duration, log logger.ILogger) *SessionRepository[T] {
	c := cache.New(ttl, cleanupInterval)
	r := &SessionRepository[T]{cache: c, logger: log, module: module}
	c.OnEvicted(r.evicted)
	return r
}

func NewFormSessionRepository(ttl, cleanupInterval time.Duration, log logger.ILogger) *SessionRepository[*entity.FormSession] {
	return NewSessionRepository[*entity.FormSession]("FormSessionRepository", ttl, cleanupInterval, log)
}

func NewDetectionSessionRepository(ttl, cleanupInterval time.Duration, log logger.ILogger) *SessionRepository[*entity.DetectionSession] {
	return NewSessionRepository[*entity.DetectionSession]("DetectionSessionRepository", ttl, cleanupInterval, log)
}

func (r *SessionRepository[T]) Save(id string, session T) {
	r.cache.Set(id, session, cache.DefaultExpiration)
}

func (r *SessionRepository[T]) Get(id string) (T, bool) {
	if x, found := r.cache.Get(id); found {
		return x.(T), true
	}
	var zero T
	return zero, false
}

// Touch renews the TTL of a live entry.
func (r *SessionRepository[T]) Touch(id string) bool {
	session, ok := r.Get(id)
	if ok {
		r.cache.Set(id, session, cache.DefaultExpiration)
	}
	return ok
}

func (r *SessionRepository[T]) Delete(id string) {
	r.cache.Delete(id)
}

func (r *SessionRepository[T]) Count() int {
	return r.cache.ItemCount()
}

// Flush closes and drops every entry. Used on shutdown.
func (r *SessionRepository[T]) Flush() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}

func (r *SessionRepository[T]) evicted(id string, value interface{}) {
	session, ok := value.(T)
	if !ok {
		return
	}
	if err := session.Close(); err != nil {
		r.logger.Warn(r.module, "Failed to close evicted session", map[string]interface{}{"session_id": id, "error": err.Error()})
		return
	}
	r.logger.Info(r.module, "Session closed", map[string]interface{}{"session_id": id})
}
