// Package feed publishes the match's replication stream over a local
// socket so observer processes (overlay renderers, recording tools,
// the spectator CLI) can follow a match without holding a websocket.
// Frames are length-prefixed gob; unix domain sockets keep the hop
// cheap, with a TCP loopback fallback on Windows.
package feed

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"hopball-arena/internal/game"
)

const (
	// DefaultSocketPath is where the publisher listens when the
	// config leaves the socket unset.
	DefaultSocketPath = "/tmp/hopball-arena.sock"

	// DefaultTCPAddr is the Windows fallback listen address.
	DefaultTCPAddr = "127.0.0.1:7777"

	// Frame types.
	FrameHello    byte = 0x01
	FrameChanges  byte = 0x02
	FrameSnapshot byte = 0x03
	FrameResult   byte = 0x04
	FramePing     byte = 0x05

	// ProtocolVersion gates decoding; bump on any frame change.
	ProtocolVersion uint16 = 1

	MaxFrameSize   = 1024 * 1024 // 1MB
	WriteTimeout   = 50 * time.Millisecond
	ReadTimeout    = 100 * time.Millisecond
	ReconnectDelay = 500 * time.Millisecond
	PingInterval   = 5 * time.Second
)

// HelloFrame greets each subscriber with the match identity, sent
// once per connection before any other frame.
type HelloFrame struct {
	MatchID  string
	Mode     string
	TickRate int
}

// ChangesFrame carries one tick's drained journal batch.
type ChangesFrame struct {
	Changes []game.Change
}

// SnapshotFrame carries a full state snapshot, published on a slower
// cadence so late joiners converge without replaying every change.
type SnapshotFrame struct {
	Snapshot game.GameSnapshot
}

// ResultFrame carries the final standings once the match ends.
type ResultFrame struct {
	Result game.MatchResult
}

// Change.Data is an interface field, so every payload that can ride
// in a batch must be registered for gob on both sides.
func init() {
	gob.Register(game.PlayerJoinedData{})
	gob.Register(game.HealthChangedData{})
	gob.Register(game.DeathData{})
	gob.Register(game.RespawnData{})
	gob.Register(game.AmmoData{})
	gob.Register(game.WeaponSwitchData{})
	gob.Register(game.FireModeData{})
	gob.Register(game.ScoreData{})
	gob.Register(game.TagData{})
	gob.Register(game.HopballPhaseData{})
	gob.Register(game.HopballVisualData{})
	gob.Register(game.MatchPhaseData{})
	gob.Register(game.MatchTimeData{})
	gob.Register(game.FadeData{})
	gob.Register(game.PodiumArrangeData{})
	gob.Register(game.VisibilityMaskData{})
	gob.Register(game.CameraSwitchData{})
	gob.Register(game.PodiumReadyData{})
}

// Header is the fixed 8-byte frame prefix.
type Header struct {
	Version  uint16
	Type     byte
	Reserved byte
	Length   uint32
}

const HeaderSize = 8 // 2 + 1 + 1 + 4

// WriteFrame gob-encodes payload and writes it with a framing header.
// A nil payload writes a header-only frame (pings).
func WriteFrame(w io.Writer, frameType byte, payload any) error {
	var body []byte
	if payload != nil {
		buf := getBuffer()
		defer putBuffer(buf)

		if err := gob.NewEncoder(buf).Encode(payload); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
		body = buf.Bytes()
	}

	if len(body) > MaxFrameSize {
		return fmt.Errorf("frame too large: %d > %d", len(body), MaxFrameSize)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(header[0:2], ProtocolVersion)
	header[2] = frameType
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(body)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one framed message, returning its type and raw
// gob body.
func ReadFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	version := binary.LittleEndian.Uint16(header[0:2])
	frameType := header[2]
	length := binary.LittleEndian.Uint32(header[4:8])

	if version != ProtocolVersion {
		return 0, nil, fmt.Errorf("protocol version mismatch: got %d, want %d", version, ProtocolVersion)
	}
	if length > MaxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d > %d", length, MaxFrameSize)
	}

	var body []byte
	if length > 0 {
		body = make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, fmt.Errorf("read body: %w", err)
		}
	}
	return frameType, body, nil
}

func decode[T any](data []byte) (*T, error) {
	buf := getReader(data)
	defer putReader(buf)

	var v T
	if err := gob.NewDecoder(buf).Decode(&v); err != nil {
		return nil, fmt.Errorf("gob decode %T: %w", v, err)
	}
	return &v, nil
}

// DecodeHello decodes a hello frame body.
func DecodeHello(data []byte) (*HelloFrame, error) { return decode[HelloFrame](data) }

// DecodeChanges decodes a changes frame body.
func DecodeChanges(data []byte) (*ChangesFrame, error) { return decode[ChangesFrame](data) }

// DecodeSnapshot decodes a snapshot frame body.
func DecodeSnapshot(data []byte) (*SnapshotFrame, error) { return decode[SnapshotFrame](data) }

// DecodeResult decodes a result frame body.
func DecodeResult(data []byte) (*ResultFrame, error) { return decode[ResultFrame](data) }

// CleanupSocket removes a stale socket file if present.
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}

// Encoder buffer pool; gob writes many small chunks, so encoding into
// a pooled growable buffer avoids per-frame allocation.
var bufferPool = sync.Pool{
	New: func() any { return new(growBuffer) },
}

type growBuffer struct {
	buf []byte
}

func (b *growBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *growBuffer) Bytes() []byte { return b.buf }
func (b *growBuffer) Reset()        { b.buf = b.buf[:0] }

func getBuffer() *growBuffer {
	buf := bufferPool.Get().(*growBuffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *growBuffer) { bufferPool.Put(buf) }

// Decoder reader pool, the mirror of the encoder pool.
var readerPool = sync.Pool{
	New: func() any { return &byteReader{} },
}

type byteReader struct {
	data []byte
	pos  int
}

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

func getReader(data []byte) *byteReader {
	buf := readerPool.Get().(*byteReader)
	buf.data = data
	buf.pos = 0
	return buf
}

func putReader(buf *byteReader) { readerPool.Put(buf) }
