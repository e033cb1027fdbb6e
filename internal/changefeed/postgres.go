package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const Channel = "storefront_changes"

// PGFeed слушает NOTIFY из триггера notify_collection_change и раздаёт события через Hub.
type PGFeed struct {
	listener *pq.Listener
	hub      *Hub

	done chan struct{}
	wg   sync.WaitGroup
}

func NewPGFeed(dsn string) (*PGFeed, error) {
	listener := pq.NewListener(dsn, 500*time.Millisecond, 30*time.Second, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			log.Warn().Err(err).Msg("changefeed: connection attempt failed")
		case pq.ListenerEventDisconnected:
			log.Warn().Err(err).Msg("changefeed: disconnected")
		case pq.ListenerEventReconnected:
			log.Info().Msg("changefeed: reconnected")
		}
	})

	if err := listener.Listen(Channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("changefeed: failed to listen on %s: %w", Channel, err)
	}

	f := &PGFeed{
		listener: listener,
		hub:      NewHub(),
		done:     make(chan struct{}),
	}

	f.wg.Add(1)
	go f.run()

	return f, nil
}

func (f *PGFeed) Subscribe(ctx context.Context, table, userID string) (*Subscription, error) {
	return f.hub.Subscribe(ctx, table, userID)
}

func (f *PGFeed) Close() error {
	close(f.done)
	err := f.listener.Close()
	f.wg.Wait()
	f.hub.Close()
	return err
}

func (f *PGFeed) run() {
	defer f.wg.Done()

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-f.done:
			return
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// после реконнекта pq присылает nil: что-то могли пропустить
				f.hub.Publish(Event{Op: OpResync})
				continue
			}
			ev, err := DecodePayload(n.Extra)
			if err != nil {
				log.Warn().Err(err).Str("payload", n.Extra).Msg("changefeed: bad notification payload")
				continue
			}
			f.hub.Publish(ev)
		case <-ping.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					log.Warn().Err(err).Msg("changefeed: ping failed")
				}
			}()
		}
	}
}

func DecodePayload(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("changefeed: decode payload: %w", err)
	}
	if ev.Table == "" {
		return Event{}, fmt.Errorf("changefeed: payload without table")
	}
	return ev, nil
}
