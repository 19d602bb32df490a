// internal/protocol/records.go
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusTag is the presence tag a member reports for itself.
type StatusTag uint8

const (
	TagNotPresent StatusTag = iota
	TagPresent
	TagTimedOut
)

// ParseStatusTag maps the wire tag. "PR" is an alias of "P".
func ParseStatusTag(s string) StatusTag {
	switch s {
	case "P", "PR":
		return TagPresent
	case "TO":
		return TagTimedOut
	default:
		return TagNotPresent
	}
}

func (t StatusTag) String() string {
	switch t {
	case TagPresent:
		return "P"
	case TagTimedOut:
		return "TO"
	default:
		return "NP"
	}
}

// Record is one member's entry inside a log payload.
// Layout: aux0, masterFlag, aux2, telemetry, statusTag, deviceId
type Record struct {
	Master    bool
	Telemetry int
	Status    StatusTag
	DeviceID  byte

	// Aux holds fields 0 and 2 verbatim; they are not interpreted.
	Aux [2]string
}

// ParseRecords splits a log payload into exactly want records.
// The whole payload is validated before anything is returned.
func ParseRecords(payload string, want int) ([]Record, error) {
	payload = strings.TrimRight(payload, "\x00\r\n ")

	parts := strings.Split(payload, RecordSeparator)
	if len(parts) != want {
		return nil, fmt.Errorf("%w: %d records, swarm size is %d", ErrProtocolViolation, len(parts), want)
	}

	out := make([]Record, 0, want)
	for i, part := range parts {
		r, err := parseRecord(part)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseRecord(s string) (Record, error) {
	fields := strings.Split(s, FieldSeparator)
	if len(fields) != RecordFields {
		return Record{}, fmt.Errorf("%w: %d fields, want %d", ErrProtocolViolation, len(fields), RecordFields)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	telemetry, err := strconv.Atoi(fields[fieldTelemetry])
	if err != nil {
		return Record{}, fmt.Errorf("%w: telemetry %q", ErrProtocolViolation, fields[fieldTelemetry])
	}

	id, err := strconv.ParseUint(fields[fieldDeviceID], 10, 8)
	if err != nil {
		return Record{}, fmt.Errorf("%w: device id %q", ErrProtocolViolation, fields[fieldDeviceID])
	}

	return Record{
		Master:    fields[fieldMaster] == "1",
		Telemetry: telemetry,
		Status:    ParseStatusTag(fields[fieldStatus]),
		DeviceID:  byte(id),
		Aux:       [2]string{fields[fieldAux0], fields[fieldAux2]},
	}, nil
}

// FormatRecords is the inverse of ParseRecords. Used by tools and tests
// that need to speak as a swarm member.
func FormatRecords(records []Record) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		master := "0"
		if r.Master {
			master = "1"
		}
		aux0, aux2 := r.Aux[0], r.Aux[1]
		if aux0 == "" {
			aux0 = "0"
		}
		if aux2 == "" {
			aux2 = "0"
		}
		parts = append(parts, strings.Join([]string{
			aux0,
			master,
			aux2,
			strconv.Itoa(r.Telemetry),
			r.Status.String(),
			strconv.Itoa(int(r.DeviceID)),
		}, FieldSeparator))
	}
	return strings.Join(parts, RecordSeparator)
}
