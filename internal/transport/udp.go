// internal/transport/udp.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"
)

// MaxDatagram bounds a single read. Swarm frames are far smaller.
const MaxDatagram = 1024

// Config is the minimal runtime config the transport needs.
type Config struct {
	Port      int
	Broadcast string // destination for outbound control packets
}

// Datagram is one received frame with where it came from.
type Datagram struct {
	Data    []byte
	Src     net.Addr
	Dst     net.IP // local destination, when the platform reports it
	IfIndex int
}

// UDP is the swarm's broadcast socket: it receives member packets and
// broadcasts control packets on the same port.
type UDP struct {
	conn net.PacketConn
	pc   *ipv4.PacketConn
	dst  *net.UDPAddr
	buf  []byte
}

// Listen binds the swarm port with broadcast enabled.
func Listen(ctx context.Context, cfg Config) (*UDP, error) {
	if cfg.Port <= 0 || cfg.Port > 0xFFFF {
		return nil, fmt.Errorf("transport: invalid port %d", cfg.Port)
	}
	if cfg.Broadcast == "" {
		cfg.Broadcast = net.IPv4bcast.String()
	}

	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.Broadcast, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("transport: broadcast address: %w", err)
	}

	lc := net.ListenConfig{Control: control}
	conn, err := lc.ListenPacket(ctx, "udp4", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("transport: listen :%d: %w", cfg.Port, err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true); err != nil {
		// not every platform reports the receiving interface
		log.Debug().Err(err).Msg("transport: control messages unavailable")
	}

	return &UDP{
		conn: conn,
		pc:   pc,
		dst:  dst,
		buf:  make([]byte, MaxDatagram),
	}, nil
}

// Read waits for one datagram until deadline. A timeout is reported with an
// error matching os.ErrDeadlineExceeded (see IsTimeout).
// The returned Data is a fresh copy.
func (u *UDP) Read(deadline time.Time) (Datagram, error) {
	if err := u.pc.SetReadDeadline(deadline); err != nil {
		return Datagram{}, err
	}

	n, cm, src, err := u.pc.ReadFrom(u.buf)
	if err != nil {
		return Datagram{}, err
	}

	d := Datagram{
		Data: append([]byte(nil), u.buf[:n]...),
		Src:  src,
	}
	if cm != nil {
		d.Dst = cm.Dst
		d.IfIndex = cm.IfIndex
	}
	return d, nil
}

// Broadcast sends pkt to the configured broadcast address.
func (u *UDP) Broadcast(pkt []byte) error {
	_, err := u.pc.WriteTo(pkt, nil, u.dst)
	if err != nil {
		return fmt.Errorf("transport: broadcast to %s: %w", u.dst, err)
	}
	return nil
}

// LocalAddr returns the bound address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Close releases the socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}

// IsTimeout reports whether err is a read deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
