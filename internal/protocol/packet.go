// internal/protocol/packet.go
package protocol

import (
	"fmt"
	"net"
)

// ControlPacket is the fixed 14-byte command/status frame.
// Layout: Magic(1) | Type(1) | SwarmID(1) | Version(1) | Payload(9) | Terminator(1)
type ControlPacket struct {
	Type    PacketType
	SwarmID byte
	Version byte
	Payload [ControlPayloadSize]byte
}

// LogPacket is the variable-length LOG_TO_SERVER frame.
// Layout: Magic(1) | Type(1) | SwarmID(1) | PayloadLength(1) | Reserved(1) | Payload(PayloadLength)
type LogPacket struct {
	SwarmID  byte
	Reserved byte
	Payload  string
}

// Packet is a decoded inbound frame. Exactly one of Control or Log is set.
type Packet struct {
	Control *ControlPacket
	Log     *LogPacket
}

// Type returns the packet type of whichever shape is set.
func (p Packet) Type() PacketType {
	if p.Log != nil {
		return LogToServer
	}
	if p.Control != nil {
		return p.Control.Type
	}
	return PacketType(0xFF)
}

// Encode serialises a control packet into its exact on-wire layout.
func (p ControlPacket) Encode() []byte {
	data := make([]byte, ControlPacketSize)
	data[offMagic] = Magic
	data[offType] = byte(p.Type)
	data[offSwarmID] = p.SwarmID
	data[offVersion] = p.Version
	copy(data[offPayload:offTerm], p.Payload[:])
	data[offTerm] = Terminator
	return data
}

// Encode serialises a log packet. Payloads longer than 255 bytes are truncated.
func (p LogPacket) Encode() []byte {
	payload := []byte(p.Payload)
	if len(payload) > 0xFF {
		payload = payload[:0xFF]
	}

	data := make([]byte, LogHeaderSize+len(payload))
	data[offMagic] = Magic
	data[offType] = byte(LogToServer)
	data[offSwarmID] = p.SwarmID
	data[offLogLength] = byte(len(payload))
	data[4] = p.Reserved
	copy(data[LogHeaderSize:], payload)
	return data
}

// Decode validates framing and returns the typed packet.
// It never inspects device identifiers beyond copying them out.
func Decode(data []byte) (Packet, error) {
	if len(data) < LogHeaderSize {
		return Packet{}, fmt.Errorf("%w: length %d", ErrMalformedPacket, len(data))
	}
	if data[offMagic] != Magic {
		return Packet{}, fmt.Errorf("%w: bad magic 0x%02x", ErrMalformedPacket, data[offMagic])
	}

	t := PacketType(data[offType])
	if !t.Known() {
		return Packet{}, fmt.Errorf("%w: unknown type %d", ErrMalformedPacket, data[offType])
	}

	if t == LogToServer {
		lp, err := decodeLog(data)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Log: lp}, nil
	}

	cp, err := decodeControl(data)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Control: cp}, nil
}

func decodeControl(data []byte) (*ControlPacket, error) {
	if len(data) != ControlPacketSize {
		return nil, fmt.Errorf("%w: control length %d", ErrMalformedPacket, len(data))
	}
	if data[offTerm] != Terminator {
		return nil, fmt.Errorf("%w: bad terminator 0x%02x", ErrMalformedPacket, data[offTerm])
	}

	p := &ControlPacket{
		Type:    PacketType(data[offType]),
		SwarmID: data[offSwarmID],
		Version: data[offVersion],
	}
	copy(p.Payload[:], data[offPayload:offTerm])
	return p, nil
}

func decodeLog(data []byte) (*LogPacket, error) {
	n := int(data[offLogLength])
	if len(data) < LogHeaderSize+n {
		return nil, fmt.Errorf("%w: log payload %d bytes, buffer holds %d", ErrMalformedPacket, n, len(data)-LogHeaderSize)
	}

	payload := data[LogHeaderSize : LogHeaderSize+n]
	for _, b := range payload {
		if b > 0x7F {
			return nil, fmt.Errorf("%w: non-ASCII log payload", ErrMalformedPacket)
		}
	}

	return &LogPacket{
		SwarmID:  data[offSwarmID],
		Reserved: data[4],
		Payload:  string(payload),
	}, nil
}

// NewResetSwarm builds the RESET_SWARM broadcast.
func NewResetSwarm(version byte) ControlPacket {
	return ControlPacket{
		Type:    ResetSwarm,
		SwarmID: ServerSwarmID,
		Version: version,
	}
}

// NewDefineServerLogger builds the announce that tells members where to send logs.
// The four octets of addr are carried in payload[0:4]; the rest is zero.
func NewDefineServerLogger(version byte, addr net.IP) (ControlPacket, error) {
	ip4 := addr.To4()
	if ip4 == nil {
		return ControlPacket{}, fmt.Errorf("protocol: server address %v is not IPv4", addr)
	}

	p := ControlPacket{
		Type:    DefineServerLogger,
		SwarmID: ServerSwarmID,
		Version: version,
	}
	copy(p.Payload[:4], ip4)
	return p, nil
}

// ServerAddress returns the address carried by a DEFINE_SERVER_LOGGER packet.
func (p ControlPacket) ServerAddress() net.IP {
	return net.IPv4(p.Payload[0], p.Payload[1], p.Payload[2], p.Payload[3])
}
