package server

// The coordinator processes everything through one message-bus topic with a
// single subscriber, so request handling, socket lifecycle and sweeps are
// serialized without locks. Handlers never publish back to the topic; work
// they generate (disconnect cascades) accumulates in the dispatcher and is
// drained synchronously after each mailbox item.

const (
	coordinatorTopic = "coordinator"
	mailboxSize      = 10000
)

type mailKind int

const (
	mailAccept mailKind = iota
	mailRequest
	mailClosed
	mailTick
	mailShutdown
)

type tickKind int

const (
	tickWebsockets tickKind = iota
	tickPlayers
	tickGames
	tickObsolete
	tickKinds // number of tick kinds; sizes the pending flags
)

// mail is one unit of coordinator work.
type mail struct {
	kind   mailKind
	client *client
	frame  []byte
	tick   tickKind
}

// post drops one item into the coordinator mailbox.
func (s *Server) post(m mail) {
	s.bus.Publish(coordinatorTopic, m)
}

// consume is the single mailbox subscriber and the only code that touches
// the store.
func (s *Server) consume(m mail) {
	if s.stopped {
		// a connection accepted during shutdown still needs its write
		// pump released
		if m.kind == mailAccept && m.client != nil {
			s.out.retire(m.client)
		}
		return
	}

	switch m.kind {
	case mailAccept:
		s.handleAccept(m.client)
	case mailRequest:
		s.handleFrame(m.client, m.frame)
	case mailClosed:
		s.handleClosed(m.client)
	case mailTick:
		s.scan.clear(m.tick)
		s.handleTick(m.tick)
	case mailShutdown:
		s.handleShutdown()
		s.stopped = true
		close(s.done)
		return
	}

	s.reapDead()
}

// reapDead runs the disconnect cascade for every connection the dispatcher
// marked dead during the last handler. Cascades can kill further
// connections, so it loops until quiescent.
func (s *Server) reapDead() {
	for {
		dead := s.out.takeDead()
		if len(dead) == 0 {
			return
		}
		for _, c := range dead {
			s.handleClosed(c)
		}
	}
}

// handleTick runs the sweep matching a scanner tick.
func (s *Server) handleTick(kind tickKind) {
	switch kind {
	case tickWebsockets:
		s.sweepWebsockets()
	case tickPlayers:
		s.sweepPlayers()
	case tickGames:
		s.sweepGames()
	case tickObsolete:
		s.sweepObsolete()
	}
}
