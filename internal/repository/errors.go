package repository

import (
	"errors"

	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the error is a Postgres unique-constraint
// violation. Services map these to conflicts when an application-level check
// loses a race with a concurrent writer.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	return false
}
