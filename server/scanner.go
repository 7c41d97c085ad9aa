package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// scanner owns the four sweep timers. Each fires ticks into the coordinator
// mailbox after an initial delay, then on a fixed period. A tick kind with
// one already waiting in the mailbox is coalesced, so a slow coordinator
// never accumulates a backlog of identical sweeps.
type scanner struct {
	clk     clock.Clock
	post    func(mail)
	stop    chan struct{}
	wg      sync.WaitGroup
	pending [tickKinds]atomic.Bool
}

func newScanner(clk clock.Clock, post func(mail)) *scanner {
	return &scanner{
		clk:  clk,
		post: post,
		stop: make(chan struct{}),
	}
}

func (sc *scanner) start(cfg Config) {
	sc.run(tickWebsockets, cfg.WebsocketCheckDelay, cfg.WebsocketCheckPeriod)
	sc.run(tickPlayers, cfg.PlayerCheckDelay, cfg.PlayerCheckPeriod)
	sc.run(tickGames, cfg.GameCheckDelay, cfg.GameCheckPeriod)
	sc.run(tickObsolete, cfg.ObsoleteCheckDelay, cfg.ObsoleteCheckPeriod)
}

func (sc *scanner) run(kind tickKind, delay, period time.Duration) {
	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()

		timer := sc.clk.Timer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-sc.stop:
			return
		}
		sc.fire(kind)

		ticker := sc.clk.Ticker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sc.fire(kind)
			case <-sc.stop:
				return
			}
		}
	}()
}

// fire posts a tick unless one of the same kind is already waiting.
func (sc *scanner) fire(kind tickKind) {
	if sc.pending[kind].CompareAndSwap(false, true) {
		sc.post(mail{kind: mailTick, tick: kind})
	}
}

// clear is called by the coordinator as it picks a tick up.
func (sc *scanner) clear(kind tickKind) {
	sc.pending[kind].Store(false)
}

// halt stops the timers and waits for their goroutines to exit.
func (sc *scanner) halt() {
	close(sc.stop)
	sc.wg.Wait()
}
