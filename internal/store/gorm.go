package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RowRecord is the relational representation of a row: one record per
// row, cells kept as a JSON object. The autoincrement ID is the row ref.
type RowRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Table     string    `gorm:"column:table_name;not null;index:idx_store_rows_table"`
	Cells     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName places every row of every logical table in store_rows.
func (RowRecord) TableName() string { return "store_rows" }

// GormStore is a RowStore over PostgreSQL or SQLite through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore. The store_rows table must exist; it is
// created by the SQL migrations or by AutoMigrate for SQLite.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ReadRows loads every row of table ordered by ref.
func (s *GormStore) ReadRows(ctx context.Context, table string) ([]Row, error) {
	var records []RowRecord
	if err := s.db.WithContext(ctx).Where("table_name = ?", table).Order("id").Find(&records).Error; err != nil {
		return nil, classify(ctx, err)
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		cells := Cells{}
		if err := json.Unmarshal([]byte(rec.Cells), &cells); err != nil {
			return nil, fmt.Errorf("decode %s ref %d: %w", table, rec.ID, err)
		}
		rows = append(rows, Row{Ref: int(rec.ID), Cells: cells})
	}
	return rows, nil
}

// AppendRow inserts a new record for table.
func (s *GormStore) AppendRow(ctx context.Context, table string, cells Cells) (Row, error) {
	data, err := json.Marshal(cells)
	if err != nil {
		return Row{}, fmt.Errorf("encode %s row: %w", table, err)
	}

	rec := &RowRecord{Table: table, Cells: string(data)}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return Row{}, classify(ctx, err)
	}
	return Row{Ref: int(rec.ID), Cells: cells.Clone()}, nil
}

// UpdateCell rewrites the cells of one record inside a transaction.
func (s *GormStore) UpdateCell(ctx context.Context, table string, ref int, column, value string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec RowRecord
		if err := tx.Where("id = ? AND table_name = ?", ref, table).First(&rec).Error; err != nil {
			return err
		}

		cells := Cells{}
		if err := json.Unmarshal([]byte(rec.Cells), &cells); err != nil {
			return fmt.Errorf("decode %s ref %d: %w", table, ref, err)
		}
		cells[column] = value

		data, err := json.Marshal(cells)
		if err != nil {
			return err
		}
		return tx.Model(&rec).Updates(map[string]interface{}{
			"cells":      string(data),
			"updated_at": time.Now().UTC(),
		}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s ref %d: %w", table, ref, ErrRowNotFound)
	}
	if err != nil {
		return classify(ctx, err)
	}
	return nil
}

// classify maps driver errors to the store sentinels. A deadline means the
// statement may or may not have run; anything else is reported as a
// definite failure.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Compile-time check: ensure GormStore implements RowStore
var _ RowStore = (*GormStore)(nil)
