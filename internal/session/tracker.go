package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/metrics"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultIdleTimeout время бездействия до подсказки о выходе
const DefaultIdleTimeout = 30 * time.Minute

// ExpireFunc вызывается, когда сессия пользователя простаивала дольше таймаута
type ExpireFunc func(userID int64)

// Tracker кооперативный таймер бездействия. Истечение только подсказка клиенту
// выйти, серверные токены при этом не отзываются.
type Tracker struct {
	sessions *cache.Cache
	timeout  time.Duration
	onExpire ExpireFunc
	metrics  *metrics.Registry
	logger   *zap.Logger

	// пользователи, вышедшие сами: для них OnExpire не вызывается
	removed sync.Map
}

// NewTracker создаёт трекер. checkInterval задаёт, как часто ищутся истёкшие сессии.
func NewTracker(timeout, checkInterval time.Duration, onExpire ExpireFunc, metricsReg *metrics.Registry, logger *zap.Logger) *Tracker {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	if checkInterval <= 0 {
		checkInterval = timeout / 10
	}

	t := &Tracker{
		sessions: cache.New(timeout, checkInterval),
		timeout:  timeout,
		onExpire: onExpire,
		metrics:  metricsReg,
		logger:   logger,
	}
	t.sessions.OnEvicted(t.evicted)

	return t
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Touch фиксирует активность и перезапускает отсчёт
func (t *Tracker) Touch(userID int64) {
	t.removed.Delete(userID)
	t.sessions.SetDefault(key(userID), userID)
	t.metrics.SetActiveSessions(t.sessions.ItemCount())
}

// Remaining сколько осталось до истечения, 0 если сессии нет
func (t *Tracker) Remaining(userID int64) time.Duration {
	_, expiresAt, found := t.sessions.GetWithExpiration(key(userID))
	if !found {
		return 0
	}

	left := time.Until(expiresAt)
	if left < 0 {
		return 0
	}
	return left
}

// Remove завершает сессию без вызова OnExpire
func (t *Tracker) Remove(userID int64) {
	t.removed.Store(userID, struct{}{})
	t.sessions.Delete(key(userID))
}

func (t *Tracker) evicted(k string, v interface{}) {
	userID, ok := v.(int64)
	if !ok {
		return
	}

	t.metrics.SetActiveSessions(t.sessions.ItemCount())

	if _, manual := t.removed.LoadAndDelete(userID); manual {
		return
	}

	t.logger.Info("Session idle timeout",
		zap.Int64("user_id", userID),
		zap.Duration("timeout", t.timeout),
	)

	if t.onExpire != nil {
		t.onExpire(userID)
	}
}
