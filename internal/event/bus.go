// Package event implements the in-process notification bus that waiting
// clients block on to learn that a relevant state transition occurred.
//
// The bus carries no payload and has no backing store: a signal only says
// "something of this kind changed for this session". Consumers reconcile by
// re-fetching authoritative state from the record store. A process restart
// drops any unconsumed signal.
package event

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
)

// Kind identifies a class of state transition.
type Kind string

const (
	KindPlayerStatusUpdate Kind = "player_status_update"
	KindGroupCreated       Kind = "group_created"
	KindGameCreated        Kind = "game_created"
	KindGameClosed         Kind = "game_closed"
	KindCardPlayed         Kind = "card_played"
	KindTurnChanged        Kind = "turn_changed"
)

// Kinds returns all event kinds.
func Kinds() []Kind {
	return []Kind{
		KindPlayerStatusUpdate,
		KindGroupCreated,
		KindGameCreated,
		KindGameClosed,
		KindCardPlayed,
		KindTurnChanged,
	}
}

// ParseKind converts an event kind name into a Kind.
func ParseKind(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// ErrNoKinds is returned when AwaitAny is called with nothing to wait for.
var ErrNoKinds = errors.New("event: await requires at least one kind")

type signalKey struct {
	session string
	kind    Kind
}

// Bus is a process-scoped table of latched binary signals keyed by
// (session, kind). Publishing sets the signal; a signal stays set until one
// waiter consumes it. Publishing an already-set signal is a no-op, so a
// burst of identical events collapses into one pending signal.
//
// Safe for concurrent use.
type Bus struct {
	logger *log.Logger

	mu      sync.Mutex
	signals map[signalKey]chan struct{}
}

// NewBus creates an empty bus.
func NewBus(logger *log.Logger) *Bus {
	return &Bus{
		logger:  logger.WithPrefix("bus"),
		signals: make(map[signalKey]chan struct{}),
	}
}

// signal returns the latch channel for (session, kind), creating it on first
// use. The one-slot buffer is the latch: a pending send means "set".
func (b *Bus) signal(session string, kind Kind) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := signalKey{session: session, kind: kind}
	ch, ok := b.signals[key]
	if !ok {
		ch = make(chan struct{}, 1)
		b.signals[key] = ch
	}
	return ch
}

// Publish sets the signal for (session, kind). Idempotent while the signal
// is pending.
func (b *Bus) Publish(session string, kind Kind) {
	select {
	case b.signal(session, kind) <- struct{}{}:
		b.logger.Debug("signal set", "session", session, "kind", kind)
	default:
		// already pending
	}
}

// AwaitAny blocks until any one of the named signals for the session is set,
// consumes that one signal, and returns its kind. Other signals, set or not,
// are left untouched. Cancelling the context releases the wait without
// losing any signal.
func (b *Bus) AwaitAny(ctx context.Context, session string, kinds ...Kind) (Kind, error) {
	if len(kinds) == 0 {
		return "", ErrNoKinds
	}

	// One short-lived waiter per kind races to consume its signal. The
	// unbuffered channel admits exactly one winner; a waiter that consumed
	// its signal but lost the race puts it back so nothing is dropped.
	fired := make(chan Kind)
	done := make(chan struct{})
	defer close(done)

	for _, kind := range kinds {
		ch := b.signal(session, kind)
		go func(kind Kind, ch chan struct{}) {
			select {
			case <-ch:
				select {
				case fired <- kind:
				case <-done:
					select {
					case ch <- struct{}{}:
					default:
					}
				}
			case <-done:
			}
		}(kind, ch)
	}

	select {
	case kind := <-fired:
		b.logger.Debug("signal consumed", "session", session, "kind", kind)
		return kind, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Forget drops all signal state for a session. Called when a session ends so
// the table does not grow without bound.
func (b *Bus) Forget(session string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.signals {
		if key.session == session {
			delete(b.signals, key)
		}
	}
}
