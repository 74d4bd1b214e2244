// Package history mediates between the live chat path and the message
// store: synchronous append and backfill, asynchronous room purge.
package history

import (
	"context"
	"log"
	"sync"
	"time"

	"quizroom/pkg/interfaces"
	"quizroom/pkg/types"
)

const (
	purgeQueueSize = 64
	purgeBatchSize = 500
	purgeTimeout   = 30 * time.Second
)

// Gateway wraps the chat store for the websocket handler. Purges run on
// a dedicated worker so room eviction never blocks on the database.
type Gateway struct {
	store        interfaces.ChatStore
	backfillSize int
	purgeCh      chan string
	done         chan struct{}
	closeOnce    sync.Once
}

// NewGateway starts the purge worker. backfillSize caps how many recent
// messages a joining client receives.
func NewGateway(store interfaces.ChatStore, backfillSize int) *Gateway {
	g := &Gateway{
		store:        store,
		backfillSize: backfillSize,
		purgeCh:      make(chan string, purgeQueueSize),
		done:         make(chan struct{}),
	}

	go g.purgeLoop()

	return g
}

// Append persists one chat message.
func (g *Gateway) Append(ctx context.Context, msg *types.ChatMessage) error {
	return g.store.AppendMessage(ctx, msg)
}

// Recent returns the newest messages of a room, oldest first, capped at
// the configured backfill size.
func (g *Gateway) Recent(ctx context.Context, roomCode string) ([]*types.ChatMessage, error) {
	return g.store.RecentMessages(ctx, roomCode, g.backfillSize)
}

// SchedulePurge queues a room for history deletion. Non-blocking: when
// the queue is full the purge is skipped with a log line, leaving
// orphaned rows for the next eviction of the same code.
func (g *Gateway) SchedulePurge(roomCode string) {
	select {
	case g.purgeCh <- roomCode:
	default:
		log.Printf("history: purge queue full, skipping room=%s", roomCode)
	}
}

func (g *Gateway) purgeLoop() {
	for {
		select {
		case roomCode := <-g.purgeCh:
			g.purgeRoom(roomCode)
		case <-g.done:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case roomCode := <-g.purgeCh:
					g.purgeRoom(roomCode)
				default:
					return
				}
			}
		}
	}
}

func (g *Gateway) purgeRoom(roomCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	total := 0
	for {
		n, err := g.store.PurgeRoomMessages(ctx, roomCode, purgeBatchSize)
		if err != nil {
			log.Printf("history: purge failed room=%s deleted=%d err=%v", roomCode, total, err)
			return
		}
		total += n
		if n < purgeBatchSize {
			break
		}
	}
	if total > 0 {
		log.Printf("history: purged room=%s messages=%d", roomCode, total)
	}
}

// Close stops the purge worker after draining its queue.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		close(g.done)
	})
}
