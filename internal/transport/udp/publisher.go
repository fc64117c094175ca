// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"visualizer/internal/analysis"
	applog "visualizer/internal/log"
	"visualizer/internal/transport"
)

const headerSize = 4 + 8 + 2

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

// UDPPublisher periodically fetches the latest frame, packs its band levels
// into a binary packet and sends it with a UDPSender. It runs in its own
// goroutine between Start and Stop, independent of the analysis tick.
type UDPPublisher struct {
	log      *applog.Logger
	sender   *UDPSender
	source   transport.FrameSource
	interval time.Duration

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32
	lastSeq     uint64        // Frame sequence of the last packet sent.
	sent        bool          // A packet has been sent at least once.
	packet      *bytes.Buffer // Reused for every packet.
}

// NewUDPPublisher creates a publisher for frames from source. An interval
// <= 0 defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source transport.FrameSource, logger *applog.Logger) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("UDPPublisher: frame source cannot be nil")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	log := logger.With("udp")

	if interval <= 0 {
		interval = 16 * time.Millisecond
		log.Warnf("Invalid publish interval, defaulting to %s", interval)
	}

	return &UDPPublisher{
		log:      log,
		sender:   sender,
		source:   source,
		interval: interval,
		packet:   new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		p.log.Warnf("Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Local copies keep the goroutine off p.ticker and p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.log.Infof("Publishing band levels every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debugf("Publisher stopped after %d packets", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+--------------------------------------------------------------------------+
| Field           | Data Type    | Size (Bytes) | Description              |
|-----------------|--------------|--------------|--------------------------|
| Sequence Number | uint32       | 4            | Monotonically increasing |
| Timestamp       | int64        | 8            | Nanoseconds since epoch  |
| Band Count      | uint16       | 2            | Number of bands (N)      |
| Bands           | [N]{f32,f32} | N * 8        | Level then peak per band |
+--------------------------------------------------------------------------+
*/

// Packet is a decoded band-level packet.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Bands     []analysis.BandLevel
}

// EncodePacket appends one packet to buf.
func EncodePacket(buf *bytes.Buffer, seq uint32, timestamp int64, bands []analysis.BandLevel) error {
	if len(bands) > math.MaxUint16 {
		return fmt.Errorf("udp: %d bands do not fit in a packet", len(bands))
	}
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], seq)
	binary.BigEndian.PutUint64(hdr[4:12], uint64(timestamp))
	binary.BigEndian.PutUint16(hdr[12:14], uint16(len(bands)))
	buf.Write(hdr[:])

	var pair [8]byte
	for _, b := range bands {
		binary.BigEndian.PutUint32(pair[0:4], math.Float32bits(float32(b.Level)))
		binary.BigEndian.PutUint32(pair[4:8], math.Float32bits(float32(b.Peak)))
		buf.Write(pair[:])
	}
	return nil
}

// DecodePacket parses a packet produced by EncodePacket.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(data[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:12])),
	}
	count := int(binary.BigEndian.Uint16(data[12:14]))
	body := data[headerSize:]
	if len(body) < count*8 {
		return Packet{}, fmt.Errorf("%w: %d bands need %d bytes, have %d", ErrShortPacket, count, count*8, len(body))
	}
	p.Bands = make([]analysis.BandLevel, count)
	for i := range count {
		p.Bands[i] = analysis.BandLevel{
			Level: float64(math.Float32frombits(binary.BigEndian.Uint32(body[8*i:]))),
			Peak:  float64(math.Float32frombits(binary.BigEndian.Uint32(body[8*i+4:]))),
		}
	}
	return p, nil
}

// publish sends the latest frame unless it was already sent.
func (p *UDPPublisher) publish() {
	frame := p.source.Latest()
	if frame == nil || (p.sent && frame.Seq == p.lastSeq) {
		return
	}

	p.sequenceNum++
	p.packet.Reset()
	if err := EncodePacket(p.packet, p.sequenceNum, time.Now().UnixNano(), frame.Bands); err != nil {
		p.log.Errorf("Error packing frame %d: %v", frame.Seq, err)
		return
	}
	if err := p.sender.Send(p.packet.Bytes()); err != nil {
		return // Logged by the sender.
	}
	p.lastSeq = frame.Seq
	p.sent = true
	p.log.Debugf("Sent packet %d (%d bytes)", p.sequenceNum, p.packet.Len())
}

// Close implements the io.Closer interface. It stops the publisher and
// closes the sender.
func (p *UDPPublisher) Close() error {
	return errors.Join(p.Stop(), p.sender.Close())
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
