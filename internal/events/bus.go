package events

import (
	"sync"
	"time"
)

const (
	ActionCreated  = "created"
	ActionReplaced = "replaced"
	ActionDeleted  = "deleted"
	// ActionRepaired - запись исправлена сверкой ссылок
	ActionRepaired = "repaired"
)

// Event - изменение записи в коллекции tasks или users
type Event struct {
	Collection string    `json:"collection"`
	Action     string    `json:"action"`
	ID         string    `json:"id"`
	Data       any       `json:"data,omitempty"`
	Time       time.Time `json:"time"`
}

// Publisher принимает события от менеджеров
type Publisher interface {
	Publish(e Event)
}

// Discard - Publisher, который ничего не делает
type Discard struct{}

func (Discard) Publish(Event) {}

// Bus раздаёт события подписчикам. Publish не блокируется: если буфер
// подписчика заполнен, событие для него теряется.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			droppedEvents.Inc()
		}
	}
}

// Subscribe возвращает канал событий и функцию отписки
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	subscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
				subscribers.Dec()
			}
		})
	}
}

// Close закрывает каналы всех подписчиков
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
		subscribers.Dec()
	}
}
