package repository

import (
	"context"
	"database/sql"
	"time"

	"cartridge_conditioner/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.DeviceEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.DeviceEvent, error)
}

// Repository aggregates the persistence layer. Control state itself is never
// persisted; the unit always restarts Idle with outputs de-energized. Only
// the event log and operator accounts live in SQLite.
type Repository struct {
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
