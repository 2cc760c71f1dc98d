// Package eventbus implements the Light Event Bus: a pure in-process
// publish/subscribe path with no persistence, no cursor, and no replay,
// emitted synchronously from save/delete. Subscribers are held in a
// mutex-guarded map keyed by collection and, optionally, document id.
package eventbus

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docwatch/internal/trigger"
)

// EventType mirrors trigger.EventType for callers that only import eventbus.
type EventType = trigger.EventType

// Event type constants mirror trigger's for callers that only import eventbus.
const (
	Insert = trigger.Insert
	Update = trigger.Update
	Write  = trigger.Write
	Delete = trigger.Delete
)

// Event is the payload delivered to a Light Event Bus subscriber: a
// collection, document id, event type, timestamp, and the document data.
type Event struct {
	Collection string
	ID         string
	Type       EventType
	Date       int64
	Data       map[string]any
}

// Handler receives bus events. It runs synchronously on the publishing
// goroutine; it must not block.
type Handler func(ev Event)

// Bus is a pure in-process publish/subscribe keyed by "col.type" (any id)
// and "col.id.type" (one document).
type Bus struct {
	log *logrus.Entry

	mu   sync.Mutex
	subs map[string]map[int]Handler
	next int
}

// New constructs an empty Bus.
func New(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{log: log.WithField("component", "eventbus"), subs: make(map[string]map[int]Handler)}
}

// unsubscribe removes subscription id from key's handler set.
func (b *Bus) unsubscribe(key string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.subs[key]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(b.subs, key)
		}
	}
}

func (b *Bus) subscribe(key string, h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[key] == nil {
		b.subs[key] = make(map[int]Handler)
	}
	b.subs[key][id] = h
	b.mu.Unlock()
	return func() { b.unsubscribe(key, id) }
}

// OnCollection subscribes to every event of the given type on collection,
// regardless of document id ("col.type").
func (b *Bus) OnCollection(collection string, t EventType, h Handler) func() {
	return b.subscribe(collectionKey(collection, t), h)
}

// OnDocument subscribes to events of the given type for one document
// ("col.id.type").
func (b *Bus) OnDocument(collection, id string, t EventType, h Handler) func() {
	return b.subscribe(documentKey(collection, id, t), h)
}

// Publish delivers ev synchronously to every matching subscriber. It is
// called from save/delete on the same goroutine as the write.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, 2)
	for _, key := range []string{collectionKey(ev.Collection, ev.Type), documentKey(ev.Collection, ev.ID, ev.Type)} {
		for _, h := range b.subs[key] {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func collectionKey(collection string, t EventType) string {
	return collection + "." + string(t)
}

func documentKey(collection, id string, t EventType) string {
	return collection + "." + id + "." + string(t)
}
