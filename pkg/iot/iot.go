package iot

import (
	"context"
	"sync"

	"liyu1981.xyz/device-events-service/pkg/db"
	"liyu1981.xyz/device-events-service/pkg/models"
)

type IEvent interface {
	SaveEvent(ctx context.Context, input *models.EventInput) (*models.Event, error)
}

type IQuery interface {
	ListEvents(ctx context.Context, query *models.EventQuery) (*models.EventPage, error)
	ListAlerts(ctx context.Context, query *models.EventQuery) (*models.EventPage, error)
	LatestEventsByType(ctx context.Context, deviceID string) ([]models.Event, error)
}

type ILocation interface {
	UpsertLocation(ctx context.Context, deviceID string, geo *models.GeoLocation) (*models.Location, error)
	GetLocation(ctx context.Context, deviceID string) (*models.Location, error)
}

// INotifier delivers alert-worthy events. Errors are logged by the caller and
// never fail ingestion.
type INotifier interface {
	NotifyAlert(ctx context.Context, event *models.Event) error
}

type IGeolocator interface {
	Resolve(ctx context.Context, cell models.CellTower) (*models.GeoLocation, error)
}

type IOT struct {
	Db         db.DB
	Event      IEvent
	Query      IQuery
	Location   ILocation
	Notifier   INotifier
	Geolocator IGeolocator

	notifications sync.WaitGroup
}

type ServiceOpts struct {
	Event      IEvent
	Query      IQuery
	Location   ILocation
	Notifier   INotifier
	Geolocator IGeolocator
}

func (i *IOT) WithServices(opts ServiceOpts) *IOT {
	if opts.Event != nil {
		i.Event = opts.Event
	}
	if opts.Query != nil {
		i.Query = opts.Query
	}
	if opts.Location != nil {
		i.Location = opts.Location
	}
	if opts.Notifier != nil {
		i.Notifier = opts.Notifier
	}
	if opts.Geolocator != nil {
		i.Geolocator = opts.Geolocator
	}
	return i
}

// WaitNotifications blocks until every alert notification dispatched so far
// has finished.
func (i *IOT) WaitNotifications() {
	i.notifications.Wait()
}

// WithDefaultServices wires the db-backed event, query and location services.
func (i *IOT) WithDefaultServices() *IOT {
	return i.WithServices(ServiceOpts{
		Event:    i.GetIEvent(),
		Query:    i.GetIQuery(),
		Location: i.GetILocation(),
	})
}
