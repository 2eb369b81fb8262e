package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"not found", gorm.ErrRecordNotFound, ErrRecordNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), ErrRecordNotFound},
		{"duplicate", gorm.ErrDuplicatedKey, ErrDuplicateKey},
		{"foreign key", gorm.ErrForeignKeyViolated, ErrForeignKey},
		{"pg unique", &pgconn.PgError{Code: "23505"}, ErrDuplicateKey},
		{"pg foreign key", &pgconn.PgError{Code: "23503"}, ErrForeignKey},
		{"pg not null", &pgconn.PgError{Code: "23502"}, ErrInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TranslateError(tt.in))
		})
	}

	other := errors.New("connection reset")
	assert.Equal(t, other, TranslateError(other))
}
