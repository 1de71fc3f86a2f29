package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/canteen-reservation/internal/canteen"
	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
	"github.com/example/canteen-reservation/internal/persistence"
)

var (
	departmentCounter  uint64
	personCounter      uint64
	reservationCounter uint64
	badgeTokenCounter  uint64
	menuCounter        uint64
)

// referenceTime falls inside the lunch window in the reference timezone so
// badge confirmations resolve a category without per-test clock setup.
var referenceTime = time.Date(2026, time.March, 10, 12, 0, 0, 0, civildate.ReferenceLocation())

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the civil date of ReferenceTime.
func ReferenceDate() civildate.Date {
	return civildate.Today(referenceTime)
}

// -------------------------- Department fixtures --------------------------

// DepartmentFixture represents a deterministic department record.
type DepartmentFixture struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DepartmentOption configures the generated department fixture.
type DepartmentOption func(*DepartmentFixture)

// NewDepartmentFixture returns a deterministic department fixture with
// optional overrides.
func NewDepartmentFixture(opts ...DepartmentOption) DepartmentFixture {
	idx := atomic.AddUint64(&departmentCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := DepartmentFixture{
		ID:        fmt.Sprintf("dept-%03d", idx),
		Name:      fmt.Sprintf("Department %03d", idx),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithDepartmentID overrides the generated department ID.
func WithDepartmentID(id string) DepartmentOption {
	return func(f *DepartmentFixture) {
		f.ID = id
	}
}

// WithDepartmentName overrides the generated department name.
func WithDepartmentName(name string) DepartmentOption {
	return func(f *DepartmentFixture) {
		f.Name = name
	}
}

// Persistence returns the fixture as a persistence.Department value.
func (f DepartmentFixture) Persistence() persistence.Department {
	return persistence.Department{
		ID:        f.ID,
		Name:      f.Name,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ---------------------------- Person fixtures ----------------------------

// PersonFixture represents a deterministic directory person record.
type PersonFixture struct {
	ID           string
	DepartmentID string
	Name         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PersonOption configures the generated person fixture.
type PersonOption func(*PersonFixture)

// NewPersonFixture returns a deterministic person fixture with optional
// overrides.
func NewPersonFixture(opts ...PersonOption) PersonFixture {
	idx := atomic.AddUint64(&personCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := PersonFixture{
		ID:           fmt.Sprintf("person-%03d", idx),
		DepartmentID: "dept-001",
		Name:         fmt.Sprintf("Person %03d", idx),
		Active:       true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPersonID overrides the generated person ID.
func WithPersonID(id string) PersonOption {
	return func(f *PersonFixture) {
		f.ID = id
	}
}

// WithPersonDepartment assigns the person to a department.
func WithPersonDepartment(departmentID string) PersonOption {
	return func(f *PersonFixture) {
		f.DepartmentID = departmentID
	}
}

// WithPersonName overrides the generated person name.
func WithPersonName(name string) PersonOption {
	return func(f *PersonFixture) {
		f.Name = name
	}
}

// WithPersonInactive marks the person inactive.
func WithPersonInactive() PersonOption {
	return func(f *PersonFixture) {
		f.Active = false
	}
}

// Persistence returns the fixture as a persistence.Person value.
func (f PersonFixture) Persistence() persistence.Person {
	return persistence.Person{
		ID:           f.ID,
		DepartmentID: f.DepartmentID,
		Name:         f.Name,
		Active:       f.Active,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ------------------------- Reservation fixtures --------------------------

// ReservationFixture represents a deterministic reservation record with its
// member rows.
type ReservationFixture struct {
	ID                string
	DepartmentID      string
	RequesterID       string
	MealDate          civildate.Date
	MealCategory      mealwindow.Category
	LifecycleStatus   persistence.LifecycleStatus
	ConsumptionStatus persistence.ConsumptionStatus
	ConsumedAt        *time.Time
	Remark            string
	MemberIDs         []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a deterministic reservation fixture for the
// reference date's lunch slot with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ReservationFixture{
		ID:                fmt.Sprintf("rsv-%03d", idx),
		DepartmentID:      "dept-001",
		RequesterID:       "person-001",
		MealDate:          ReferenceDate(),
		MealCategory:      mealwindow.CategoryLunch,
		LifecycleStatus:   persistence.LifecyclePending,
		ConsumptionStatus: persistence.ConsumptionReserved,
		MemberIDs:         []string{"person-001"},
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationDepartment assigns the owning department.
func WithReservationDepartment(departmentID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.DepartmentID = departmentID
	}
}

// WithReservationRequester sets the requesting person.
func WithReservationRequester(personID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.RequesterID = personID
	}
}

// WithReservationSlot sets the meal date and category.
func WithReservationSlot(date civildate.Date, category mealwindow.Category) ReservationOption {
	return func(f *ReservationFixture) {
		f.MealDate = date
		f.MealCategory = category
	}
}

// WithReservationMembers sets the member person ids.
func WithReservationMembers(personIDs ...string) ReservationOption {
	return func(f *ReservationFixture) {
		f.MemberIDs = personIDs
	}
}

// WithReservationLifecycle sets the lifecycle status.
func WithReservationLifecycle(status persistence.LifecycleStatus) ReservationOption {
	return func(f *ReservationFixture) {
		f.LifecycleStatus = status
	}
}

// WithReservationConsumed marks the reservation and all members consumed at
// the given instant.
func WithReservationConsumed(at time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.ConsumptionStatus = persistence.ConsumptionConsumed
		f.ConsumedAt = &at
	}
}

// WithReservationRemark sets the free-form remark.
func WithReservationRemark(remark string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Remark = remark
	}
}

// Persistence returns the fixture as a persistence.Reservation with one
// member row per member id.
func (f ReservationFixture) Persistence() persistence.Reservation {
	members := make([]persistence.ReservationMember, 0, len(f.MemberIDs))
	for _, id := range f.MemberIDs {
		member := persistence.ReservationMember{
			PersonID:          id,
			ConsumptionStatus: persistence.ConsumptionReserved,
		}
		if f.ConsumptionStatus == persistence.ConsumptionConsumed {
			member.ConsumptionStatus = persistence.ConsumptionConsumed
			member.ConsumedAt = f.ConsumedAt
		}
		members = append(members, member)
	}
	return persistence.Reservation{
		ID:                f.ID,
		DepartmentID:      f.DepartmentID,
		RequesterID:       f.RequesterID,
		MealDate:          f.MealDate,
		MealCategory:      f.MealCategory,
		LifecycleStatus:   f.LifecycleStatus,
		ConsumptionStatus: f.ConsumptionStatus,
		ConsumedAt:        f.ConsumedAt,
		Remark:            f.Remark,
		Members:           members,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// SubmitParams returns the fixture as submission input for the reservation
// service.
func (f ReservationFixture) SubmitParams() canteen.SubmitParams {
	return canteen.SubmitParams{
		RequesterID:  f.RequesterID,
		MealDate:     f.MealDate,
		MealCategory: f.MealCategory,
		MemberIDs:    append([]string(nil), f.MemberIDs...),
		Remark:       f.Remark,
	}
}

// ------------------------- Badge token fixtures --------------------------

// BadgeTokenFixture represents a deterministic badge credential record. The
// plain Secret is retained alongside the stored hash so tests can present
// it.
type BadgeTokenFixture struct {
	ID         string
	PersonID   string
	Secret     string
	SecretHash string
	Status     persistence.BadgeTokenStatus
	SingleUse  bool
	ExpiresAt  *time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BadgeTokenOption configures the generated badge token fixture.
type BadgeTokenOption func(*BadgeTokenFixture)

// NewBadgeTokenFixture returns a deterministic active badge token fixture.
// The secret hash is derived with reduced argon2id parameters to keep test
// runs fast.
func NewBadgeTokenFixture(opts ...BadgeTokenOption) BadgeTokenFixture {
	idx := atomic.AddUint64(&badgeTokenCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	secret := fmt.Sprintf("badge-secret-%03d", idx)
	hash, err := canteen.CreateSecretHash(secret, fixtureArgon2idParams)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: hashing badge secret: %v", err))
	}
	fixture := BadgeTokenFixture{
		ID:         fmt.Sprintf("tok-%03d", idx),
		PersonID:   "person-001",
		Secret:     secret,
		SecretHash: hash,
		Status:     persistence.BadgeTokenActive,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

var fixtureArgon2idParams = canteen.Argon2idParams{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// WithBadgeTokenID overrides the generated token ID.
func WithBadgeTokenID(id string) BadgeTokenOption {
	return func(f *BadgeTokenFixture) {
		f.ID = id
	}
}

// WithBadgeTokenPerson binds the token to a person.
func WithBadgeTokenPerson(personID string) BadgeTokenOption {
	return func(f *BadgeTokenFixture) {
		f.PersonID = personID
	}
}

// WithBadgeTokenRevoked marks the token revoked.
func WithBadgeTokenRevoked() BadgeTokenOption {
	return func(f *BadgeTokenFixture) {
		f.Status = persistence.BadgeTokenRevoked
	}
}

// WithBadgeTokenSingleUse marks the token single use.
func WithBadgeTokenSingleUse() BadgeTokenOption {
	return func(f *BadgeTokenFixture) {
		f.SingleUse = true
	}
}

// WithBadgeTokenExpiresAt sets the expiry instant.
func WithBadgeTokenExpiresAt(t time.Time) BadgeTokenOption {
	return func(f *BadgeTokenFixture) {
		f.ExpiresAt = &t
	}
}

// WithBadgeTokenUsedAt marks the token as already consumed.
func WithBadgeTokenUsedAt(t time.Time) BadgeTokenOption {
	return func(f *BadgeTokenFixture) {
		f.UsedAt = &t
	}
}

// Persistence returns the fixture as a persistence.BadgeToken value.
func (f BadgeTokenFixture) Persistence() persistence.BadgeToken {
	return persistence.BadgeToken{
		ID:         f.ID,
		PersonID:   f.PersonID,
		SecretHash: f.SecretHash,
		Status:     f.Status,
		SingleUse:  f.SingleUse,
		ExpiresAt:  f.ExpiresAt,
		UsedAt:     f.UsedAt,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// ----------------------------- Menu fixtures -----------------------------

// MenuFixture represents a deterministic published menu record.
type MenuFixture struct {
	ID           string
	MealDate     civildate.Date
	MealCategory mealwindow.Category
	Title        string
	Published    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MenuOption configures the generated menu fixture.
type MenuOption func(*MenuFixture)

// NewMenuFixture returns a deterministic published menu fixture for the
// reference date's lunch slot.
func NewMenuFixture(opts ...MenuOption) MenuFixture {
	idx := atomic.AddUint64(&menuCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := MenuFixture{
		ID:           fmt.Sprintf("menu-%03d", idx),
		MealDate:     ReferenceDate(),
		MealCategory: mealwindow.CategoryLunch,
		Title:        fmt.Sprintf("Menu %03d", idx),
		Published:    true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMenuSlot sets the meal date and category.
func WithMenuSlot(date civildate.Date, category mealwindow.Category) MenuOption {
	return func(f *MenuFixture) {
		f.MealDate = date
		f.MealCategory = category
	}
}

// WithMenuUnpublished marks the menu as a draft.
func WithMenuUnpublished() MenuOption {
	return func(f *MenuFixture) {
		f.Published = false
	}
}

// Persistence returns the fixture as a persistence.Menu value.
func (f MenuFixture) Persistence() persistence.Menu {
	return persistence.Menu{
		ID:           f.ID,
		MealDate:     f.MealDate,
		MealCategory: f.MealCategory,
		Title:        f.Title,
		Published:    f.Published,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}
