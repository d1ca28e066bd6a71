package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"sync"
	"syscall"

	"github.com/pion/rtp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/waverider/waverider/dsp"
)

// RTPSource receives IQ sample blocks from an RTP multicast stream.
// The payload format is interleaved big-endian int16 I/Q pairs, as
// produced by ka9q-radio style SDR frontends.
type RTPSource struct {
	sampleRate int
	centerFreq uint64
	ssrc       uint32 // 0 = accept any

	conn    *net.UDPConn
	samples chan complex128
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool

	unknownSSRCCount map[uint32]int
}

// NewRTPSource joins the multicast group and starts receiving.
func NewRTPSource(cfg RTPSourceConfig, sampleRate int, centerFreq uint64) (*RTPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Group)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve multicast group %s: %w", cfg.Group, err)
	}

	var iface *net.Interface
	if cfg.Interface != "" {
		iface, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("failed to find interface %s: %w", cfg.Interface, err)
		}
	}

	conn, err := setupMulticastSocket(addr, iface)
	if err != nil {
		return nil, fmt.Errorf("failed to setup multicast socket: %w", err)
	}

	rs := &RTPSource{
		sampleRate:       sampleRate,
		centerFreq:       centerFreq,
		ssrc:             cfg.SSRC,
		conn:             conn,
		samples:          make(chan complex128, sampleRate), // ~1s of buffer
		done:             make(chan struct{}),
		unknownSSRCCount: make(map[uint32]int),
	}

	rs.running = true
	rs.wg.Add(1)
	go rs.receiveLoop()

	log.Printf("[RTPSource] Listening on %s (iface: %v, ssrc: %d)", addr, iface, cfg.SSRC)
	return rs, nil
}

// setupMulticastSocket creates a UDP socket for receiving multicast
// data with SO_REUSEPORT/SO_REUSEADDR so multiple consumers can bind.
func setupMulticastSocket(addr *net.UDPAddr, iface *net.Interface) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
					sockErr = fmt.Errorf("failed to set SO_REUSEPORT: %w", err)
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					sockErr = fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
					return
				}
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	packetConn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", addr.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	conn := packetConn.(*net.UDPConn)

	if addr.IP.IsMulticast() {
		p := ipv4.NewPacketConn(conn)
		if err := p.JoinGroup(iface, &net.UDPAddr{IP: addr.IP}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to join multicast group %s: %w", addr.IP, err)
		}
	}

	return conn, nil
}

// receiveLoop reads RTP packets and feeds decoded samples into the
// buffer, dropping the oldest data when the consumer falls behind.
func (rs *RTPSource) receiveLoop() {
	defer rs.wg.Done()

	buf := make([]byte, 65536)
	for {
		select {
		case <-rs.done:
			return
		default:
		}

		n, _, err := rs.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-rs.done:
				return
			default:
			}
			log.Printf("[RTPSource] Read error: %v", err)
			continue
		}

		packet := &rtp.Packet{}
		if err := packet.Unmarshal(buf[:n]); err != nil {
			if DebugMode {
				log.Printf("[RTPSource] Failed to parse RTP packet: %v", err)
			}
			continue
		}

		if rs.ssrc != 0 && packet.SSRC != rs.ssrc {
			rs.unknownSSRCCount[packet.SSRC]++
			if DebugMode && rs.unknownSSRCCount[packet.SSRC] == 1 {
				log.Printf("[RTPSource] Ignoring unexpected SSRC %d", packet.SSRC)
			}
			continue
		}

		rs.pushPayload(packet.Payload)
	}
}

// pushPayload converts interleaved big-endian int16 I/Q pairs to
// complex samples.
func (rs *RTPSource) pushPayload(payload []byte) {
	for i := 0; i+3 < len(payload); i += 4 {
		re := float64(int16(binary.BigEndian.Uint16(payload[i:i+2]))) / 32768.0
		im := float64(int16(binary.BigEndian.Uint16(payload[i+2:i+4]))) / 32768.0
		select {
		case rs.samples <- complex(re, im):
		default:
			// Consumer behind; drop the oldest sample to keep latency bounded.
			select {
			case <-rs.samples:
			default:
			}
			select {
			case rs.samples <- complex(re, im):
			default:
			}
		}
	}
}

// ReadBlock collects numSamples from the stream. Returns an error once
// the source is closed.
func (rs *RTPSource) ReadBlock(numSamples int) (dsp.IQBlock, error) {
	samples := make([]complex128, 0, numSamples)
	for len(samples) < numSamples {
		select {
		case s := <-rs.samples:
			samples = append(samples, s)
		case <-rs.done:
			return dsp.IQBlock{}, fmt.Errorf("rtp source closed")
		}
	}
	return dsp.IQBlock{
		Samples:    samples,
		SampleRate: rs.sampleRate,
		CenterFreq: rs.centerFreq,
	}, nil
}

// SampleRate returns the configured sample rate.
func (rs *RTPSource) SampleRate() int {
	return rs.sampleRate
}

// CenterFreq returns the configured center frequency.
func (rs *RTPSource) CenterFreq() uint64 {
	return rs.centerFreq
}

// Close stops the receive loop and closes the socket.
func (rs *RTPSource) Close() error {
	rs.mu.Lock()
	if !rs.running {
		rs.mu.Unlock()
		return nil
	}
	rs.running = false
	rs.mu.Unlock()

	close(rs.done)
	err := rs.conn.Close()
	rs.wg.Wait()
	return err
}
