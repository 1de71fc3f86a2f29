package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/canteen-reservation/internal/canteen"
	"github.com/example/canteen-reservation/internal/persistence"
)

// SigningSecret is the deterministic badge signing key used by service
// factories in tests.
var SigningSecret = []byte("testfixtures-signing-secret")

// ServiceFactory assists tests with constructing canteen services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// ReservationServiceDeps captures dependencies for constructing a
// reservation service.
type ReservationServiceDeps struct {
	Reservations persistence.ReservationRepository
	Directory    canteen.PersonDirectory
	Menus        canteen.MenuCatalog
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewReservationService builds a reservation service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewReservationService(deps ReservationServiceDeps) *canteen.ReservationService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return canteen.NewReservationServiceWithLogger(
		deps.Reservations,
		deps.Directory,
		deps.Menus,
		idGen,
		now,
		deps.Logger,
	)
}

// ConfirmationServiceDeps captures dependencies for constructing a
// confirmation service.
type ConfirmationServiceDeps struct {
	Confirmations persistence.ConfirmationRepository
	Reservations  persistence.ReservationRepository
	BadgeTokens   persistence.BadgeTokenRepository
	Directory     canteen.PersonDirectory
	SigningSecret []byte
	IDGenerator   func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

// NewConfirmationService builds a confirmation service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewConfirmationService(deps ConfirmationServiceDeps) *canteen.ConfirmationService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	secret := deps.SigningSecret
	if len(secret) == 0 {
		secret = SigningSecret
	}
	return canteen.NewConfirmationServiceWithLogger(
		deps.Confirmations,
		deps.Reservations,
		deps.BadgeTokens,
		deps.Directory,
		secret,
		idGen,
		now,
		deps.Logger,
	)
}
