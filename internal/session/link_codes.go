package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DefaultLinkCodeTTL время жизни кода привязки Telegram
const DefaultLinkCodeTTL = 10 * time.Minute

// LinkCodes одноразовые коды для привязки чата Telegram к пользователю
type LinkCodes struct {
	codes *cache.Cache
	ttl   time.Duration
}

func NewLinkCodes(ttl time.Duration) *LinkCodes {
	if ttl <= 0 {
		ttl = DefaultLinkCodeTTL
	}
	return &LinkCodes{
		codes: cache.New(ttl, ttl),
		ttl:   ttl,
	}
}

// Issue выдаёт новый код для пользователя
func (l *LinkCodes) Issue(userID int64) (string, time.Duration) {
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	l.codes.SetDefault(code, userID)
	return code, l.ttl
}

// Redeem погашает код. Повторно код не срабатывает.
func (l *LinkCodes) Redeem(code string) (int64, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))

	val, found := l.codes.Get(code)
	if !found {
		return 0, false
	}
	l.codes.Delete(code)

	userID, ok := val.(int64)
	return userID, ok
}
