package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"sidehustle-shop/internal/events"
	"sidehustle-shop/internal/storage"
)

const (
	sseKeepAlive = 15 * time.Second
	sseBuffer    = 32
)

// cartEvents streams the visitor's cart events as server-sent events. Writes made
// by this process arrive through the shared bus; writes made elsewhere arrive
// through the storage watcher when the backend has one.
func (h *handler) cartEvents(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	sid := sessionID(c)

	ch := make(chan events.Event, sseBuffer)
	send := func(e events.Event) {
		select {
		case ch <- e:
		default:
			h.log.Warn(h.log.WithField(ctx, "event", string(e.Kind)), "sse: client too slow, event dropped")
		}
	}

	unsubscribe := h.bus.Subscribe(func(e events.Event) {
		if e.Scope == sid {
			send(e)
		}
	})
	defer unsubscribe()

	private := events.NewBus(h.log)
	private.Subscribe(send)
	watched := h.openCart(ctx, sid, private)
	go func() {
		err := watched.Watch(ctx)
		if err != nil && !errors.Is(err, storage.ErrWatchUnsupported) && ctx.Err() == nil {
			h.log.Error(ctx, "sse: watch storage", err)
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sum := watched.Summary(ctx)
	c.SSEvent(string(events.Updated), events.Event{
		Kind:    events.Updated,
		Scope:   sid,
		Payload: events.Payload{CartCount: sum.Count, CartTotal: sum.Total},
		At:      time.Now().UTC(),
	})
	c.Writer.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.closing:
			return
		case e := <-ch:
			c.SSEvent(string(e.Kind), e)
			c.Writer.Flush()
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}
