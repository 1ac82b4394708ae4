//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package evtcp

import (
	"os"
	"os/signal"

	"github.com/dreamans/evtcp/evlog"
)

// Shutdown runs the drain-and-halt sequence on the loop goroutine. It may
// be called from any goroutine; Listen returns once the loop has stopped.
func (srv *server) Shutdown() error {
	if !srv.inShutdown.TrySet() {
		return ErrServerClosed
	}

	srv.mu.Lock()
	evLoop, serving := srv.evLoop, srv.serving
	srv.mu.Unlock()
	if evLoop == nil {
		return nil
	}
	if !serving {
		// bound but never listened: no loop goroutine will run drain
		srv.release()
		return nil
	}
	return evLoop.Trigger(srv.drain)
}

// release frees the listener and the poller of a server whose loop never ran.
func (srv *server) release() {
	if err := srv.ln.Close(); err != nil {
		evlog.Errorf("[ln.Close]: %s", err.Error())
	}
	if err := srv.evLoop.Stop(); err == nil {
		// the pending wakeup makes Wait return at once and close the fds
		srv.evLoop.Wait()
	}
}

// drain stops accepting, closes every pooled connection and stops the loop.
// Buffered output gets the single write attempt Close makes, nothing more.
func (srv *server) drain() {
	if err := srv.ln.Stop(); err != nil {
		evlog.Errorf("[ln.Stop]: %s", err.Error())
	}

	conns := srv.pool.All()
	evlog.Infof("[Shutdown]: closing %d connections", len(conns))
	for _, c := range conns {
		_ = c.Close()
	}

	if err := srv.ln.Close(); err != nil {
		evlog.Errorf("[ln.Close]: %s", err.Error())
	}
	if err := srv.evLoop.Stop(); err != nil {
		evlog.Errorf("[evLoop.Stop]: %s", err.Error())
	}
}

// installSignal routes the shutdown signals into Shutdown. The returned
// func unregisters the handler.
func (srv *server) installSignal() func() {
	if len(srv.signals) == 0 {
		return func() {}
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, srv.signals...)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			evlog.Infof("[Signal]: %s received, shutting down", sig)
			_ = srv.Shutdown()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
