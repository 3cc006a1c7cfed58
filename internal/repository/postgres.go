package repository

import (
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

const pqUniqueViolation = pq.ErrorCode("23505")

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

func dateArg(t time.Time) string {
	return t.Format(models.DateLayout)
}
