// Package mealwindow maps clock instants to meal categories. The badge
// confirmation path derives the category from the server's own clock through
// Resolve instead of trusting caller input.
package mealwindow

import (
	"fmt"
	"time"

	"github.com/example/canteen-reservation/internal/civildate"
)

// Category identifies one of the daily meal slots.
type Category string

const (
	// CategoryNone indicates the instant falls outside every meal window.
	CategoryNone Category = ""
	// CategoryBreakfast covers 06:00-10:00 in the reference timezone.
	CategoryBreakfast Category = "breakfast"
	// CategoryLunch covers 11:00-14:00 in the reference timezone.
	CategoryLunch Category = "lunch"
	// CategoryDinner covers 17:00-20:00 in the reference timezone.
	CategoryDinner Category = "dinner"
)

// Categories lists the valid meal categories in daily order.
func Categories() []Category {
	return []Category{CategoryBreakfast, CategoryLunch, CategoryDinner}
}

// IsValid reports whether the category is one of the three meal slots.
func (c Category) IsValid() bool {
	switch c {
	case CategoryBreakfast, CategoryLunch, CategoryDinner:
		return true
	}
	return false
}

// String returns the category name, or "none" for CategoryNone.
func (c Category) String() string {
	if c == CategoryNone {
		return "none"
	}
	return string(c)
}

// ParseCategory validates a caller supplied category name.
func ParseCategory(value string) (Category, error) {
	c := Category(value)
	if !c.IsValid() {
		return CategoryNone, fmt.Errorf("mealwindow: unknown category %q", value)
	}
	return c, nil
}

// Resolve maps an instant to the meal window containing it, evaluated on the
// hour component in the reference timezone. Windows are half-open:
// breakfast [06:00,10:00), lunch [11:00,14:00), dinner [17:00,20:00).
func Resolve(t time.Time) Category {
	return ResolveIn(t, civildate.ReferenceLocation())
}

// ResolveIn is Resolve with an explicit location, for callers that pin the
// zone themselves.
func ResolveIn(t time.Time, loc *time.Location) Category {
	if loc == nil {
		loc = civildate.ReferenceLocation()
	}
	switch hour := t.In(loc).Hour(); {
	case hour >= 6 && hour < 10:
		return CategoryBreakfast
	case hour >= 11 && hour < 14:
		return CategoryLunch
	case hour >= 17 && hour < 20:
		return CategoryDinner
	default:
		return CategoryNone
	}
}
