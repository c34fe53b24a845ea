package enrollment

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization", &pgconn.PgError{Code: "40001"}, ErrStoreUnavailable},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, ErrStoreUnavailable},
		{"connection failure", &pgconn.PgError{Code: "08006"}, ErrStoreUnavailable},
		{"too many connections", &pgconn.PgError{Code: "53300"}, ErrStoreUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrStoreUnavailable},
		{"foreign key", &pgconn.PgError{Code: "23503"}, ErrStoreIntegrity},
		{"check violation", &pgconn.PgError{Code: "23514"}, ErrStoreIntegrity},
		{"invalid text", &pgconn.PgError{Code: "22P02"}, ErrStoreIntegrity},
		{"deadline", context.DeadlineExceeded, ErrStoreUnavailable},
		{"unknown plain error", errors.New("conn closed"), ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyKeepsCancellation(t *testing.T) {
	got := classify("op", context.Canceled)
	if !errors.Is(got, context.Canceled) {
		t.Fatalf("got %v", got)
	}
	if IsTransient(got) {
		t.Fatal("cancellation must not be retried")
	}
}

func TestClassifyNil(t *testing.T) {
	if classify("op", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}
