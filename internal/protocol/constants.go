// internal/protocol/constants.go
package protocol

// Swarm wire layout constants.
// These values define the protocol spoken by existing swarm members and MUST NOT be configurable.

// ---- FRAMING ----

// Magic is the first byte of every swarm packet.
const Magic byte = 0xF0

// Terminator is the last byte of every control packet.
const Terminator byte = 0x0F

// ---- CONTROL PACKET GEOMETRY ----

// ControlPacketSize is the exact length of a control packet on the wire.
const ControlPacketSize = 14

// ControlPayloadSize is the number of payload bytes carried by a control packet.
const ControlPayloadSize = 9

const (
	offMagic   = 0
	offType    = 1
	offSwarmID = 2
	offVersion = 3
	offPayload = 4
	offTerm    = ControlPacketSize - 1
)

// ---- LOG PACKET GEOMETRY ----

// LogHeaderSize is the fixed header in front of a log payload:
// magic | type | swarmId | payloadLength | reserved.
const LogHeaderSize = 5

const offLogLength = 3

// ---- PACKET TYPES ----

type PacketType byte

const (
	LightUpdate        PacketType = 0
	ResetSwarm         PacketType = 1
	ChangeTest         PacketType = 2
	ResetMe            PacketType = 3
	DefineServerLogger PacketType = 4
	LogToServer        PacketType = 5
	MasterChange       PacketType = 6
	BlinkBrightLED     PacketType = 7
)

// Known reports whether t is part of the packet catalogue.
func (t PacketType) Known() bool {
	return t <= BlinkBrightLED
}

func (t PacketType) String() string {
	switch t {
	case LightUpdate:
		return "LIGHT_UPDATE"
	case ResetSwarm:
		return "RESET_SWARM"
	case ChangeTest:
		return "CHANGE_TEST"
	case ResetMe:
		return "RESET_ME"
	case DefineServerLogger:
		return "DEFINE_SERVER_LOGGER"
	case LogToServer:
		return "LOG_TO_SERVER"
	case MasterChange:
		return "MASTER_CHANGE"
	case BlinkBrightLED:
		return "BLINK_BRIGHT_LED"
	default:
		return "UNKNOWN"
	}
}

// ---- IDENTITIES ----

// ServerSwarmID marks a packet sent by something that is not a swarm member.
const ServerSwarmID byte = 0xFF

// DefaultVersion is the protocol version stamped on outbound packets.
const DefaultVersion byte = 7

// ---- LOG RECORDS ----

// RecordSeparator splits a log payload into per-member records.
const RecordSeparator = "|"

// FieldSeparator splits a record into fields.
const FieldSeparator = ","

// RecordFields is the number of fields in one member record.
const RecordFields = 6

const (
	fieldAux0      = 0
	fieldMaster    = 1
	fieldAux2      = 2
	fieldTelemetry = 3
	fieldStatus    = 4
	fieldDeviceID  = 5
)

// TelemetryMax is the top of the sensor range used by the blink formula.
const TelemetryMax = 1023
