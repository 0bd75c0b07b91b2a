// Package notify delivers lifecycle events. The core hands over structured
// events only; how they are shown to players is up to the sink.
package notify

import (
	"context"
	"errors"

	"github.com/mdhender/promisance/internal/ids"
	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/repositories/events"
)

type Notifier interface {
	Notify(ctx context.Context, evs ...models.Event) error
}

// Stamp fills in missing event ids.
func Stamp(evs []models.Event) {
	for i := range evs {
		if evs[i].ID == "" {
			evs[i].ID = ids.New(evs[i].At)
		}
	}
}

// Log writes every event to a logger.
type Log struct {
	Logger logging.Logger
}

func (n Log) Notify(ctx context.Context, evs ...models.Event) error {
	for _, ev := range evs {
		args := []any{"kind", ev.Kind, "empire", ev.EmpireID, "at", ev.At}
		for k, v := range ev.Details {
			args = append(args, k, v)
		}
		n.Logger.Info(ctx, "empire event", args...)
	}
	return nil
}

// Store appends events to the event log.
type Store struct {
	Repo events.Repository
}

func (n Store) Notify(ctx context.Context, evs ...models.Event) error {
	Stamp(evs)
	for _, ev := range evs {
		if err := n.Repo.Append(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Multi fans events out to every notifier, continuing past failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, evs ...models.Event) error {
	Stamp(evs)
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, evs...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
