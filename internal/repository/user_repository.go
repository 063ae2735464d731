package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, department_id, active, last_login, created_at, updated_at`

// UserRepository handles persistence for application users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail fetches a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID fetches a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	query := `INSERT INTO users (id, email, password_hash, full_name, role, department_id, active, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :role, :department_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateLastLogin records the login timestamp.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// ListActiveTeachers returns every active teacher.
func (r *UserRepository) ListActiveTeachers(ctx context.Context) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE role = $1 AND active ORDER BY full_name`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleTeacher); err != nil {
		return nil, fmt.Errorf("list active teachers: %w", err)
	}
	return users, nil
}

// ListActiveTeachersByIDs returns the named teachers that are active.
func (r *UserRepository) ListActiveTeachersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(
		`SELECT %s FROM users WHERE role = ? AND active AND id IN (?) ORDER BY full_name`, userColumns),
		models.RoleTeacher, ids)
	if err != nil {
		return nil, fmt.Errorf("build teacher query: %w", err)
	}
	query = r.db.Rebind(query)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list teachers by ids: %w", err)
	}
	return users, nil
}

// ListActiveTeachersByDepartment returns active teachers attached to a department.
func (r *UserRepository) ListActiveTeachersByDepartment(ctx context.Context, departmentID string) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE role = $1 AND active AND department_id = $2 ORDER BY full_name`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleTeacher, departmentID); err != nil {
		return nil, fmt.Errorf("list department teachers: %w", err)
	}
	return users, nil
}

// CountByRole counts active users holding the given role.
func (r *UserRepository) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE role = $1 AND active`, role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

// List returns users matching the filter.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Role != nil {
		where = append(where, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.DepartmentID != "" {
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY full_name LIMIT %d OFFSET %d`,
		userColumns, whereClause, size, (page-1)*size)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM users WHERE %s`, whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}
