// Package changefeed delivers row-change notifications for the collection store.
// Consumers treat every event as "refetch": payloads carry only the table,
// the operation and the owning user.
package changefeed

import (
	"context"
	"sync"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpResync приходит после переподключения, когда изменения могли потеряться.
	OpResync Op = "RESYNC"
)

type Event struct {
	Table  string `json:"table"`
	Op     Op     `json:"op"`
	UserID string `json:"user_id"`
}

type Feed interface {
	// Subscribe opens a subscription for table rows owned by userID.
	// An empty userID matches every row of the table.
	Subscribe(ctx context.Context, table, userID string) (*Subscription, error)
}

type Subscription struct {
	table  string
	userID string
	events chan Event
	hub    *Hub

	closeOnce sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
	})
	return nil
}

func (s *Subscription) matches(e Event) bool {
	if e.Op == OpResync {
		return true
	}
	if s.table != e.Table {
		return false
	}
	return s.userID == "" || s.userID == e.UserID
}
