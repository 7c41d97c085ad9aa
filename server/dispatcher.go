package server

import (
	"go.uber.org/zap"

	"github.com/Seednode/apologies/protocol"
)

// dispatcher turns outbound events into frames and delivers them without
// ever blocking the coordinator. A full or failed send marks the target
// connection dead; the loop reaps accumulated dead connections after each
// mailbox item, so a handler never observes its own disconnect cascade
// mid-flight.
type dispatcher struct {
	log   *zap.SugaredLogger
	store *Store
	dead  []*client
}

func newDispatcher(log *zap.SugaredLogger, store *Store) *dispatcher {
	return &dispatcher{log: log, store: store}
}

// markDead closes the connection's send channel and queues it for the
// loop to reap. Safe to call repeatedly.
func (d *dispatcher) markDead(c *client) {
	if c.dead {
		return
	}
	c.dead = true
	close(c.send)
	d.dead = append(d.dead, c)
}

// retire closes the send channel without queueing a reap. Used by the
// closure handler itself, which is the reap.
func (d *dispatcher) retire(c *client) {
	if c.dead {
		return
	}
	c.dead = true
	close(c.send)
}

// takeDead hands the accumulated dead connections to the loop and resets
// the queue.
func (d *dispatcher) takeDead() []*client {
	dead := d.dead
	d.dead = nil
	return dead
}

func (d *dispatcher) sendFrame(c *client, frame []byte) {
	if c == nil || c.dead {
		return
	}
	select {
	case c.send <- frame:
	default:
		d.log.Warnf("EVENT: dropping %s, send buffer full", c.remote)
		d.markDead(c)
	}
}

// toClient delivers one event to one connection.
func (d *dispatcher) toClient(c *client, ev protocol.Event) {
	if c == nil || c.dead {
		return
	}
	frame, err := ev.Encode()
	if err != nil {
		d.log.Errorf("EVENT: encoding %s failed: %v", ev.Message, err)
		return
	}
	d.sendFrame(c, frame)
}

// toPlayer delivers one event to a player's bound connection, silently
// skipping disconnected players.
func (d *dispatcher) toPlayer(p *Player, ev protocol.Event) {
	if p == nil || p.conn == nil {
		return
	}
	d.toClient(p.conn, ev)
}

// toSeatPlayers delivers one event to every live player seated in a game.
func (d *dispatcher) toSeatPlayers(g *Game, ev protocol.Event) {
	frame, err := ev.Encode()
	if err != nil {
		d.log.Errorf("EVENT: encoding %s failed: %v", ev.Message, err)
		return
	}
	for _, p := range d.store.PlayersSeated(g) {
		if p.conn == nil {
			continue
		}
		d.sendFrame(p.conn, frame)
	}
}

// toAll broadcasts one event to every tracked connection, bound or not.
func (d *dispatcher) toAll(ev protocol.Event) {
	frame, err := ev.Encode()
	if err != nil {
		d.log.Errorf("EVENT: encoding %s failed: %v", ev.Message, err)
		return
	}
	for _, c := range d.store.Connections() {
		d.sendFrame(c, frame)
	}
}

// fail sends a REQUEST_FAILED event carrying the given reason and comment.
func (d *dispatcher) fail(c *client, reason protocol.FailureReason, comment string) {
	d.toClient(c, protocol.Event{
		Message: protocol.RequestFailed,
		Context: &protocol.RequestFailedContext{Reason: reason, Comment: comment},
	})
}
