package feed

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hopball-arena/internal/game"
)

// DefaultBuffer is the outbound frame queue depth when the config
// leaves it unset.
const DefaultBuffer = 256

type outFrame struct {
	frameType byte
	payload   any
}

// Publisher serves the local observer feed. It implements
// game.Broadcaster, so the engine hands it every drained change batch;
// snapshots and the final result are pushed in by the caller on their
// own cadence.
//
// Queueing is drop-oldest: a stalled observer process must never be
// able to slow the tick loop down.
type Publisher struct {
	log        *zap.Logger
	socketPath string
	listener   net.Listener

	clients   map[net.Conn]struct{}
	clientsMu sync.RWMutex

	frames chan outFrame

	hello   HelloFrame
	helloMu sync.RWMutex

	clientCount atomic.Int32
	framesSent  atomic.Int64
	framesShed  atomic.Int64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher builds a publisher for the given socket path. Nothing
// listens until Start.
func NewPublisher(socketPath string, buffer int, log *zap.Logger) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		log:        log,
		socketPath: socketPath,
		clients:    make(map[net.Conn]struct{}),
		frames:     make(chan outFrame, buffer),
		stopCh:     make(chan struct{}),
	}
}

// SetHello sets the greeting sent to each new subscriber. Call before
// Start so early connections see it.
func (p *Publisher) SetHello(h HelloFrame) {
	p.helloMu.Lock()
	p.hello = h
	p.helloMu.Unlock()
}

// Start opens the socket and begins accepting subscribers.
func (p *Publisher) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}

	listener, err := Listen(p.socketPath)
	if err != nil {
		p.running.Store(false)
		return err
	}
	p.listener = listener

	p.wg.Add(2)
	go p.acceptLoop()
	go p.broadcastLoop()

	p.log.Info("feed publisher listening", zap.String("addr", Address(p.socketPath)))
	return nil
}

// Stop closes the listener and every subscriber, then removes the
// socket file. Safe to call more than once.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	close(p.stopCh)
	if p.listener != nil {
		p.listener.Close()
	}

	// both loops must be down before touching the client set, or a
	// connection mid-accept could slip in after the sweep
	p.wg.Wait()

	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clients = make(map[net.Conn]struct{})
	p.clientsMu.Unlock()

	CleanupSocket(p.socketPath)
	p.log.Info("feed publisher stopped")
}

// PublishChanges implements game.Broadcaster. Called on the engine
// goroutine; never blocks.
func (p *Publisher) PublishChanges(batch []game.Change) {
	p.enqueue(outFrame{FrameChanges, ChangesFrame{Changes: batch}})
}

// PublishSnapshot queues a full snapshot frame.
func (p *Publisher) PublishSnapshot(snap *game.GameSnapshot) {
	if snap == nil {
		return
	}
	p.enqueue(outFrame{FrameSnapshot, SnapshotFrame{Snapshot: *snap}})
}

// PublishResult queues the final standings.
func (p *Publisher) PublishResult(result game.MatchResult) {
	p.enqueue(outFrame{FrameResult, ResultFrame{Result: result}})
}

func (p *Publisher) enqueue(f outFrame) {
	if !p.running.Load() {
		return
	}
	select {
	case p.frames <- f:
	default:
		// full queue: shed the oldest frame, keep the newest
		select {
		case <-p.frames:
			p.framesShed.Add(1)
		default:
		}
		select {
		case p.frames <- f:
		default:
		}
	}
}

// Stats returns subscriber count and frame counters.
func (p *Publisher) Stats() (clients int, sent, shed int64) {
	return int(p.clientCount.Load()), p.framesSent.Load(), p.framesShed.Load()
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for p.running.Load() {
		conn, err := p.listener.Accept()
		if err != nil {
			if !p.running.Load() {
				return
			}
			p.log.Warn("feed accept error", zap.Error(err))
			continue
		}
		p.addClient(conn)
	}
}

// addClient greets the subscriber, then exposes it to the broadcast
// loop. The ordering matters: hello must be the first frame on the
// wire, so registration happens only after it is written.
func (p *Publisher) addClient(conn net.Conn) {
	p.helloMu.RLock()
	hello := p.hello
	p.helloMu.RUnlock()

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := WriteFrame(conn, FrameHello, hello); err != nil {
		p.log.Warn("feed greeting failed", zap.Error(err))
		conn.Close()
		return
	}

	p.clientsMu.Lock()
	p.clients[conn] = struct{}{}
	p.clientsMu.Unlock()

	count := p.clientCount.Add(1)
	p.log.Info("feed subscriber connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int32("total", count))
}

func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	_, ok := p.clients[conn]
	if ok {
		delete(p.clients, conn)
	}
	p.clientsMu.Unlock()

	if ok {
		conn.Close()
		count := p.clientCount.Add(-1)
		p.log.Info("feed subscriber disconnected", zap.Int32("remaining", count))
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	ping := time.NewTicker(PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case f := <-p.frames:
			p.writeAll(f.frameType, f.payload)
			ping.Reset(PingInterval)
		case <-ping.C:
			// idle keepalive; also surfaces dead subscribers
			p.writeAll(FramePing, nil)
		}
	}
}

// writeAll fans one frame out to every subscriber, dropping the ones
// whose writes fail.
func (p *Publisher) writeAll(frameType byte, payload any) {
	p.clientsMu.RLock()
	conns := make([]net.Conn, 0, len(p.clients))
	for conn := range p.clients {
		conns = append(conns, conn)
	}
	p.clientsMu.RUnlock()

	if len(conns) == 0 {
		return
	}

	var failed []net.Conn
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := WriteFrame(conn, frameType, payload); err != nil {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		p.removeClient(conn)
	}
	if len(failed) < len(conns) {
		p.framesSent.Add(1)
	}
}
