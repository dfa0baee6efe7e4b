package event

import (
	"errors"

	"github.com/ringrelay/ringrelay/internal/database"
)

type EventModel struct {
	db database.Database
}

var ErrEventNotCreated = errors.New("event could not be created")

func NewEventModel(db database.Database) *EventModel {
	return &EventModel{db: db}
}
