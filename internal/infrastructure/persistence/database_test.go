package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDatabase_Ping tests the Ping method
func TestDatabase_Ping(t *testing.T) {
	t.Run("successful ping", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing()

		err := db.Ping(context.Background())
		assert.NoError(t, err)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

// TestDatabase_Close tests the Close method
func TestDatabase_Close(t *testing.T) {
	t.Run("successful close", func(t *testing.T) {
		db, mock, _ := newMockDatabase(t)

		mock.ExpectClose()

		err := db.Close()
		assert.NoError(t, err)

		err = mock.ExpectationsWereMet()
		assert.NoError(t, err)
	})
}

// TestDecrementIfAvailable_SQL pins the conditional update that makes
// concurrent reservations safe: the availability check and the decrement
// are one statement, so Postgres serializes them on the row lock.
func TestDecrementIfAvailable_SQL(t *testing.T) {
	ctx := context.Background()
	productID := uuid.New()

	t.Run("decrements when the guard matches", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormProductRepository(db.DB)

		mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1,"updated_at"=\$2 WHERE id = \$3 AND stock >= \$4`).
			WithArgs(int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT "id","stock" FROM "products"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}).AddRow(productID.String(), 7))

		level, err := repo.DecrementIfAvailable(ctx, productID, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(7), level)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows affected means insufficient stock", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormProductRepository(db.DB)

		mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT "id","stock" FROM "products"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}).AddRow(productID.String(), 2))

		_, err := repo.DecrementIfAvailable(ctx, productID, 3)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows affected on a missing product is not found", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormProductRepository(db.DB)

		mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT "id","stock" FROM "products"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "stock"}))

		_, err := repo.DecrementIfAvailable(ctx, productID, 3)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateStatusIfReserved_SQL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	reservation, err := inventory.NewStockReservation(uuid.New(), uuid.New(), 2, "ORD-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, reservation.Convert(now))

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"still reserved", 1, nil},
		{"resolved concurrently", 0, shared.ErrReservationConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, mockDB := newMockDatabase(t)
			defer mockDB.Close()
			repo := NewGormStockReservationRepository(db.DB)

			mock.ExpectExec(`UPDATE "stock_reservations" SET .* WHERE id = \$5 AND status = \$6`).
				WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
					sqlmock.AnyArg(), string(inventory.ReservationReserved)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.UpdateStatusIfReserved(ctx, reservation)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
