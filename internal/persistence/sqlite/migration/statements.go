package migration

// Migrations returns the embedded schema migrations in execution order.
//
// Civil dates (meal_date) are stored as TEXT "YYYY-MM-DD" exactly as
// submitted; instants are stored as TEXT RFC3339 in UTC. The UNIQUE
// constraint on confirmation_log(reservation_id, person_id) is the storage
// engine backstop for the at-most-once consumption guarantee.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     "001",
			Description: "directory tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS departments (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				);
				CREATE TABLE IF NOT EXISTS persons (
					id TEXT PRIMARY KEY,
					department_id TEXT NOT NULL REFERENCES departments(id),
					name TEXT NOT NULL,
					active INTEGER NOT NULL DEFAULT 1,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_persons_department ON persons(department_id)
			`,
		},
		{
			Version:     "002",
			Description: "reservations and members",
			SQL: `
				CREATE TABLE IF NOT EXISTS reservations (
					id TEXT PRIMARY KEY,
					department_id TEXT NOT NULL REFERENCES departments(id),
					requester_id TEXT NOT NULL REFERENCES persons(id),
					meal_date TEXT NOT NULL,
					meal_category TEXT NOT NULL CHECK (meal_category IN ('breakfast', 'lunch', 'dinner')),
					lifecycle_status TEXT NOT NULL CHECK (lifecycle_status IN ('pending', 'confirmed', 'completed', 'cancelled')),
					consumption_status TEXT NOT NULL CHECK (consumption_status IN ('reserved', 'consumed', 'cancelled')),
					consumed_at TEXT,
					remark TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations(meal_date, meal_category);
				CREATE INDEX IF NOT EXISTS idx_reservations_department ON reservations(department_id);
				CREATE TABLE IF NOT EXISTS reservation_members (
					reservation_id TEXT NOT NULL REFERENCES reservations(id),
					person_id TEXT NOT NULL REFERENCES persons(id),
					consumption_status TEXT NOT NULL DEFAULT 'reserved' CHECK (consumption_status IN ('reserved', 'consumed')),
					consumed_at TEXT,
					PRIMARY KEY (reservation_id, person_id)
				);
				CREATE INDEX IF NOT EXISTS idx_reservation_members_person ON reservation_members(person_id)
			`,
		},
		{
			Version:     "003",
			Description: "confirmation log",
			SQL: `
				CREATE TABLE IF NOT EXISTS confirmation_log (
					id TEXT PRIMARY KEY,
					reservation_id TEXT NOT NULL REFERENCES reservations(id),
					person_id TEXT NOT NULL REFERENCES persons(id),
					actor_id TEXT NOT NULL,
					channel TEXT NOT NULL CHECK (channel IN ('self', 'admin', 'badge')),
					confirmed_at TEXT NOT NULL,
					note TEXT NOT NULL DEFAULT '',
					UNIQUE (reservation_id, person_id)
				);
				CREATE INDEX IF NOT EXISTS idx_confirmation_log_confirmed_at ON confirmation_log(confirmed_at)
			`,
		},
		{
			Version:     "004",
			Description: "badge tokens",
			SQL: `
				CREATE TABLE IF NOT EXISTS badge_tokens (
					id TEXT PRIMARY KEY,
					person_id TEXT NOT NULL REFERENCES persons(id),
					secret_hash TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL CHECK (status IN ('active', 'revoked')),
					single_use INTEGER NOT NULL DEFAULT 0,
					expires_at TEXT,
					used_at TEXT,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)
			`,
		},
		{
			Version:     "005",
			Description: "menus",
			SQL: `
				CREATE TABLE IF NOT EXISTS menus (
					id TEXT PRIMARY KEY,
					meal_date TEXT NOT NULL,
					meal_category TEXT NOT NULL CHECK (meal_category IN ('breakfast', 'lunch', 'dinner')),
					title TEXT NOT NULL,
					published INTEGER NOT NULL DEFAULT 0,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					UNIQUE (meal_date, meal_category)
				)
			`,
		},
	}
}
