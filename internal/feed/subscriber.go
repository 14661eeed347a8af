package feed

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hopball-arena/internal/game"
)

// Subscriber follows a publisher's feed, reconnecting whenever the
// server side restarts. Register callbacks before Start; they run on
// the subscriber's read goroutine, so keep them quick or hand off.
type Subscriber struct {
	log        *zap.Logger
	socketPath string

	conn   net.Conn
	connMu sync.Mutex

	hello   *HelloFrame
	helloMu sync.RWMutex
	helloCh chan struct{}

	latest atomic.Value // *game.GameSnapshot

	onHello      func(HelloFrame)
	onChanges    func([]game.Change)
	onSnapshot   func(*game.GameSnapshot)
	onResult     func(game.MatchResult)
	onConnect    func()
	onDisconnect func()

	framesReceived atomic.Int64
	reconnects     atomic.Int64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSubscriber builds a subscriber for the given socket path. Nothing
// connects until Start.
func NewSubscriber(socketPath string, log *zap.Logger) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{
		log:        log,
		socketPath: socketPath,
		helloCh:    make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
}

func (s *Subscriber) OnHello(fn func(HelloFrame))            { s.onHello = fn }
func (s *Subscriber) OnChanges(fn func([]game.Change))       { s.onChanges = fn }
func (s *Subscriber) OnSnapshot(fn func(*game.GameSnapshot)) { s.onSnapshot = fn }
func (s *Subscriber) OnResult(fn func(game.MatchResult))     { s.onResult = fn }
func (s *Subscriber) OnConnect(fn func())                    { s.onConnect = fn }
func (s *Subscriber) OnDisconnect(fn func())                 { s.onDisconnect = fn }

// Start launches the connection loop.
func (s *Subscriber) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.connectionLoop()
}

// Stop disconnects and halts reconnection attempts.
func (s *Subscriber) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
}

// Hello returns the publisher's greeting, if one has arrived.
func (s *Subscriber) Hello() (HelloFrame, bool) {
	s.helloMu.RLock()
	defer s.helloMu.RUnlock()
	if s.hello == nil {
		return HelloFrame{}, false
	}
	return *s.hello, true
}

// WaitForHello blocks until the publisher's greeting arrives or the
// timeout passes.
func (s *Subscriber) WaitForHello(timeout time.Duration) (HelloFrame, error) {
	if h, ok := s.Hello(); ok {
		return h, nil
	}
	select {
	case <-s.helloCh:
		if h, ok := s.Hello(); ok {
			return h, nil
		}
		return HelloFrame{}, errors.New("feed: hello signal without hello")
	case <-s.stopCh:
		return HelloFrame{}, errors.New("feed: subscriber stopped")
	case <-time.After(timeout):
		return HelloFrame{}, fmt.Errorf("feed: no hello after %v", timeout)
	}
}

// LatestSnapshot returns the most recent full snapshot, or nil if none
// has arrived yet.
func (s *Subscriber) LatestSnapshot() *game.GameSnapshot {
	if v := s.latest.Load(); v != nil {
		return v.(*game.GameSnapshot)
	}
	return nil
}

// IsConnected reports whether a connection is currently up.
func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

// Stats returns frame and reconnect counters.
func (s *Subscriber) Stats() (received, reconnects int64) {
	return s.framesReceived.Load(), s.reconnects.Load()
}

func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := Dial(s.socketPath)
		if err != nil {
			s.log.Debug("feed dial failed", zap.Error(err))
			if !s.sleepBeforeRetry() {
				return
			}
			continue
		}

		s.setConn(conn)
		s.log.Info("feed connected", zap.String("addr", Address(s.socketPath)))
		if s.onConnect != nil {
			s.onConnect()
		}

		s.readLoop(conn)

		s.setConn(nil)
		conn.Close()
		if s.onDisconnect != nil {
			s.onDisconnect()
		}
		if !s.running.Load() {
			return
		}
		s.reconnects.Add(1)
		if !s.sleepBeforeRetry() {
			return
		}
	}
}

func (s *Subscriber) sleepBeforeRetry() bool {
	select {
	case <-s.stopCh:
		return false
	case <-time.After(ReconnectDelay):
		return true
	}
}

func (s *Subscriber) setConn(conn net.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Subscriber) readLoop(conn net.Conn) {
	for s.running.Load() {
		conn.SetReadDeadline(time.Now().Add(ReadTimeout))
		frameType, data, err := ReadFrame(conn)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if s.running.Load() {
				s.log.Debug("feed read ended", zap.Error(err))
			}
			return
		}

		s.framesReceived.Add(1)
		if err := s.dispatch(frameType, data); err != nil {
			// framing is still aligned after a bad body; keep reading
			s.log.Warn("feed frame decode failed",
				zap.Uint8("type", frameType), zap.Error(err))
		}
	}
}

func (s *Subscriber) dispatch(frameType byte, data []byte) error {
	switch frameType {
	case FrameHello:
		hello, err := DecodeHello(data)
		if err != nil {
			return err
		}
		s.helloMu.Lock()
		s.hello = hello
		s.helloMu.Unlock()
		select {
		case s.helloCh <- struct{}{}:
		default:
		}
		if s.onHello != nil {
			s.onHello(*hello)
		}
	case FrameChanges:
		frame, err := DecodeChanges(data)
		if err != nil {
			return err
		}
		if s.onChanges != nil {
			s.onChanges(frame.Changes)
		}
	case FrameSnapshot:
		frame, err := DecodeSnapshot(data)
		if err != nil {
			return err
		}
		s.latest.Store(&frame.Snapshot)
		if s.onSnapshot != nil {
			s.onSnapshot(&frame.Snapshot)
		}
	case FrameResult:
		frame, err := DecodeResult(data)
		if err != nil {
			return err
		}
		if s.onResult != nil {
			s.onResult(frame.Result)
		}
	case FramePing:
		// keepalive only
	default:
		return fmt.Errorf("feed: unknown frame type 0x%02x", frameType)
	}
	return nil
}
