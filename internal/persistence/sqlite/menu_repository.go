package sqlite

import (
	"context"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
	"github.com/example/canteen-reservation/internal/persistence"
)

// MenuRepository implements persistence.MenuRepository using SQLite. Menus
// are advisory; a lookup miss is an expected outcome, not a failure.
type MenuRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewMenuRepository creates a new SQLite menu repository.
func NewMenuRepository(pool *ConnectionPool) *MenuRepository {
	return &MenuRepository{pool: pool, mapper: NewErrorMapper()}
}

type menuRow struct {
	ID           string `db:"id"`
	MealDate     string `db:"meal_date"`
	MealCategory string `db:"meal_category"`
	Title        string `db:"title"`
	Published    bool   `db:"published"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

// CreateMenu stores a menu for one meal slot.
func (r *MenuRepository) CreateMenu(ctx context.Context, menu persistence.Menu) error {
	if menu.ID == "" || menu.MealDate.IsZero() || !menu.MealCategory.IsValid() {
		return persistence.ErrConstraintViolation
	}

	mealDate, err := menu.MealDate.Value()
	if err != nil {
		return persistence.ErrConstraintViolation
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO menus (id, meal_date, meal_category, title, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, menu.ID, mealDate, string(menu.MealCategory), menu.Title, menu.Published, formatInstant(menu.CreatedAt), formatInstant(menu.UpdatedAt))
	return r.mapper.MapError(err)
}

// FindPublishedMenu returns the published menu for the slot, or ErrNotFound.
func (r *MenuRepository) FindPublishedMenu(ctx context.Context, date civildate.Date, category mealwindow.Category) (persistence.Menu, error) {
	mealDate, err := date.Value()
	if err != nil {
		return persistence.Menu{}, persistence.ErrNotFound
	}

	var row menuRow
	err = r.pool.DB().GetContext(ctx, &row, `
		SELECT id, meal_date, meal_category, title, published, created_at, updated_at
		FROM menus
		WHERE meal_date = ? AND meal_category = ? AND published = 1
	`, mealDate, string(category))
	if err != nil {
		return persistence.Menu{}, r.mapper.MapError(err)
	}

	menu := persistence.Menu{
		ID:           row.ID,
		MealCategory: mealwindow.Category(row.MealCategory),
		Title:        row.Title,
		Published:    row.Published,
	}
	if err := menu.MealDate.Scan(row.MealDate); err != nil {
		return persistence.Menu{}, err
	}
	if menu.CreatedAt, err = parseInstant("created_at", row.CreatedAt); err != nil {
		return persistence.Menu{}, err
	}
	if menu.UpdatedAt, err = parseInstant("updated_at", row.UpdatedAt); err != nil {
		return persistence.Menu{}, err
	}

	return menu, nil
}
