// Package repository implements the service stores on PostgreSQL.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/streamania/backend/internal/apperr"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// notFound maps sql.ErrNoRows to apperr.ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// expectRow returns apperr.ErrNotFound when an update touched nothing
func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return nil
}
