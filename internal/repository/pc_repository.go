package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
)

const pcColumns = `id, pc_number, "row", position, status, specs, last_maintenance, notes, created_at, updated_at`

// PCRepository handles persistence for lab machines.
type PCRepository struct {
	db *sqlx.DB
}

// NewPCRepository constructs the repository.
func NewPCRepository(db *sqlx.DB) *PCRepository {
	return &PCRepository{db: db}
}

// Create inserts a PC. pc_number is unique at the store.
func (r *PCRepository) Create(ctx context.Context, pc *models.PC) error {
	now := time.Now().UTC()
	if pc.ID == "" {
		pc.ID = uuid.NewString()
	}
	pc.CreatedAt = now
	pc.UpdatedAt = now
	query := `INSERT INTO pcs (id, pc_number, "row", position, status, specs, last_maintenance, notes, created_at, updated_at)
VALUES (:id, :pc_number, :row, :position, :status, :specs, :last_maintenance, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, pc); err != nil {
		return fmt.Errorf("create pc: %w", err)
	}
	return nil
}

// GetByID fetches one machine.
func (r *PCRepository) GetByID(ctx context.Context, id string) (*models.PC, error) {
	var pc models.PC
	query := fmt.Sprintf(`SELECT %s FROM pcs WHERE id = $1`, pcColumns)
	if err := r.db.GetContext(ctx, &pc, query, id); err != nil {
		return nil, err
	}
	return &pc, nil
}

// List returns all machines in row/position order.
func (r *PCRepository) List(ctx context.Context) ([]models.PC, error) {
	query := fmt.Sprintf(`SELECT %s FROM pcs ORDER BY "row", position`, pcColumns)
	var pcs []models.PC
	if err := r.db.SelectContext(ctx, &pcs, query); err != nil {
		return nil, fmt.Errorf("list pcs: %w", err)
	}
	return pcs, nil
}

// Update persists mutable PC fields.
func (r *PCRepository) Update(ctx context.Context, pc *models.PC) error {
	pc.UpdatedAt = time.Now().UTC()
	query := `UPDATE pcs SET pc_number = :pc_number, "row" = :row, position = :position,
status = :status, specs = :specs, last_maintenance = :last_maintenance, notes = :notes,
updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, pc)
	if err != nil {
		return fmt.Errorf("update pc: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update pc %s: no rows", pc.ID)
	}
	return nil
}

// Delete removes a machine.
func (r *PCRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pcs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete pc: %w", err)
	}
	return nil
}

// CountByStatus counts machines in the given status, or all when empty.
func (r *PCRepository) CountByStatus(ctx context.Context, status models.PCStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM pcs WHERE ($1 = '' OR status = $1)`
	if err := r.db.GetContext(ctx, &count, query, string(status)); err != nil {
		return 0, fmt.Errorf("count pcs: %w", err)
	}
	return count, nil
}
