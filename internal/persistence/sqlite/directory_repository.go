package sqlite

import (
	"context"

	"github.com/example/canteen-reservation/internal/persistence"
)

// DirectoryRepository implements persistence.DirectoryRepository using
// SQLite. It is the local default for the person/department directory this
// core otherwise treats as an external collaborator.
type DirectoryRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewDirectoryRepository creates a new SQLite directory repository.
func NewDirectoryRepository(pool *ConnectionPool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool, mapper: NewErrorMapper()}
}

type departmentRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type personRow struct {
	ID           string `db:"id"`
	DepartmentID string `db:"department_id"`
	Name         string `db:"name"`
	Active       bool   `db:"active"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

// CreateDepartment stores a new department.
func (r *DirectoryRepository) CreateDepartment(ctx context.Context, department persistence.Department) error {
	if department.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO departments (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, department.ID, department.Name, formatInstant(department.CreatedAt), formatInstant(department.UpdatedAt))
	return r.mapper.MapError(err)
}

// GetDepartment retrieves a department by id.
func (r *DirectoryRepository) GetDepartment(ctx context.Context, id string) (persistence.Department, error) {
	if id == "" {
		return persistence.Department{}, persistence.ErrNotFound
	}

	var row departmentRow
	err := r.pool.DB().GetContext(ctx, &row, `
		SELECT id, name, created_at, updated_at FROM departments WHERE id = ?
	`, id)
	if err != nil {
		return persistence.Department{}, r.mapper.MapError(err)
	}

	return toDepartment(row)
}

// CreatePerson stores a new person.
func (r *DirectoryRepository) CreatePerson(ctx context.Context, person persistence.Person) error {
	if person.ID == "" || person.DepartmentID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO persons (id, department_id, name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, person.ID, person.DepartmentID, person.Name, person.Active, formatInstant(person.CreatedAt), formatInstant(person.UpdatedAt))
	return r.mapper.MapError(err)
}

// GetPerson retrieves a person by id.
func (r *DirectoryRepository) GetPerson(ctx context.Context, id string) (persistence.Person, error) {
	if id == "" {
		return persistence.Person{}, persistence.ErrNotFound
	}

	var row personRow
	err := r.pool.DB().GetContext(ctx, &row, `
		SELECT id, department_id, name, active, created_at, updated_at FROM persons WHERE id = ?
	`, id)
	if err != nil {
		return persistence.Person{}, r.mapper.MapError(err)
	}

	return toPerson(row)
}

// ListPersonsByDepartment returns a department's persons ordered by id.
func (r *DirectoryRepository) ListPersonsByDepartment(ctx context.Context, departmentID string) ([]persistence.Person, error) {
	var rows []personRow
	err := r.pool.DB().SelectContext(ctx, &rows, `
		SELECT id, department_id, name, active, created_at, updated_at
		FROM persons
		WHERE department_id = ?
		ORDER BY id ASC
	`, departmentID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	persons := make([]persistence.Person, 0, len(rows))
	for _, row := range rows {
		person, err := toPerson(row)
		if err != nil {
			return nil, err
		}
		persons = append(persons, person)
	}

	return persons, nil
}

func toDepartment(row departmentRow) (persistence.Department, error) {
	department := persistence.Department{ID: row.ID, Name: row.Name}

	var err error
	if department.CreatedAt, err = parseInstant("created_at", row.CreatedAt); err != nil {
		return persistence.Department{}, err
	}
	if department.UpdatedAt, err = parseInstant("updated_at", row.UpdatedAt); err != nil {
		return persistence.Department{}, err
	}

	return department, nil
}

func toPerson(row personRow) (persistence.Person, error) {
	person := persistence.Person{
		ID:           row.ID,
		DepartmentID: row.DepartmentID,
		Name:         row.Name,
		Active:       row.Active,
	}

	var err error
	if person.CreatedAt, err = parseInstant("created_at", row.CreatedAt); err != nil {
		return persistence.Person{}, err
	}
	if person.UpdatedAt, err = parseInstant("updated_at", row.UpdatedAt); err != nil {
		return persistence.Person{}, err
	}

	return person, nil
}
