/*
Package points orchestrates the full credit pipeline: an action event
comes in, the reward table prices it, the ledger records it, and the
achievement engine re-evaluates everyone the event touched.

KEY CONCEPTS IN THIS FILE (events.go):
  - Event: one office action (coffee, supply, rating, message, reaction)
  - EventStore: the append-only journal events are replayed from. Stats
    snapshots are always rebuilt from this journal, never from counters.
*/
package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/officebrew/points-engine/ledger"
)

// =============================================================================
// EVENT MODEL
// =============================================================================

type EventKind string

const (
	EventCoffeeMade    EventKind = "coffee-made"
	EventCoffeeBrought EventKind = "coffee-brought"
	EventRatingGiven   EventKind = "rating-given"
	EventMessageSent   EventKind = "message-sent"
	EventReactionAdded EventKind = "reaction-added"
)

// Event is one consumed office action. ActorID is the user who performed
// it; SubjectID, when set, is the user on the receiving end (the rated
// coffee's maker, the reacted message's author).
type Event struct {
	ID        string
	Kind      EventKind
	ActorID   ledger.UserID
	SubjectID ledger.UserID
	RefID     string // coffee, supply, rating or message id
	Emoji     string // reactions only
	Stars     int    // ratings only, 1..5
	Announced bool   // supplies only: actor posted about it
	Timestamp time.Time
}

// Validate rejects events that cannot be priced or journaled.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	}
	if e.ActorID == "" {
		return fmt.Errorf("%w: missing actor", ErrInvalidEvent)
	}
	if e.RefID == "" {
		return fmt.Errorf("%w: missing ref id", ErrInvalidEvent)
	}
	switch e.Kind {
	case EventCoffeeMade, EventCoffeeBrought, EventMessageSent:
	case EventRatingGiven:
		if e.Stars < 1 || e.Stars > 5 {
			return fmt.Errorf("%w: stars %d out of range", ErrInvalidEvent, e.Stars)
		}
		if e.SubjectID == "" {
			return fmt.Errorf("%w: rating without maker", ErrInvalidEvent)
		}
	case EventReactionAdded:
		if e.Emoji == "" {
			return fmt.Errorf("%w: reaction without emoji", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

var (
	ErrInvalidEvent   = errors.New("invalid action event")
	ErrDuplicateEvent = errors.New("duplicate action event")
)

// =============================================================================
// EVENT STORE - Append-only action journal
// =============================================================================

type EventStore interface {
	// AppendEvent journals the event, or returns ErrDuplicateEvent when
	// the ID is already present.
	AppendEvent(ctx context.Context, e Event) error

	// EventsByActor returns the user's own actions, oldest first.
	EventsByActor(ctx context.Context, userID ledger.UserID) ([]Event, error)

	// EventsBySubject returns actions received by the user, oldest first.
	EventsBySubject(ctx context.Context, userID ledger.UserID) ([]Event, error)

	// EventsOfKind returns every journaled event of one kind, oldest
	// first. Used for cross-user stats (same-day coffees, day openers).
	EventsOfKind(ctx context.Context, kind EventKind) ([]Event, error)
}
