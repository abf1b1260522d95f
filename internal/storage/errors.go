package storage

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.  Handlers
// translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict signals that a write cannot proceed because of existing
// dependent records, e.g. deleting a property that still has bookings.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by CreateUser for a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// ErrQuotaExceeded marks a primary-store failure caused by a hard resource
// limit.  Backends may wrap it; IsQuotaError also recognises raw driver errors.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// erUserLimitReached is MySQL's ER_USER_LIMIT_REACHED ("User has exceeded
// the 'max_questions' resource").
const erUserLimitReached = 1226

var quotaPatterns = []string{
	"quota",
	"exceeded the data transfer",
	"max_questions",
	"max_updates",
	"max_user_connections",
	"resource limit",
}

// IsQuotaError reports whether err means the primary store refuses work
// because a transfer or usage limit was hit.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == erUserLimitReached {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range quotaPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
