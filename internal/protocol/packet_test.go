// internal/protocol/packet_test.go
package protocol

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlPacket_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkt  ControlPacket
	}{
		{
			name: "light update",
			pkt:  ControlPacket{Type: LightUpdate, SwarmID: 5, Version: DefaultVersion},
		},
		{
			name: "reset swarm",
			pkt:  NewResetSwarm(DefaultVersion),
		},
		{
			name: "full payload",
			pkt: ControlPacket{
				Type:    BlinkBrightLED,
				SwarmID: 0x2A,
				Version: 3,
				Payload: [ControlPayloadSize]byte{1, 2, 3, 4, 5, 6, 7, 8, 9},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := tt.pkt.Encode()
			require.Len(t, wire, ControlPacketSize)
			assert.Equal(t, Magic, wire[0])
			assert.Equal(t, Terminator, wire[ControlPacketSize-1])

			got, err := Decode(wire)
			require.NoError(t, err)
			require.NotNil(t, got.Control)
			require.Nil(t, got.Log)
			assert.Equal(t, tt.pkt, *got.Control)
		})
	}
}

func TestNewDefineServerLogger_Layout(t *testing.T) {
	p, err := NewDefineServerLogger(DefaultVersion, net.ParseIP("192.168.0.42"))
	require.NoError(t, err)

	want := []byte{0xF0, 4, 0xFF, 7, 192, 168, 0, 42, 0, 0, 0, 0, 0, 0x0F}
	assert.Equal(t, want, p.Encode())
	assert.True(t, p.ServerAddress().Equal(net.ParseIP("192.168.0.42")))
}

func TestNewDefineServerLogger_RejectsIPv6(t *testing.T) {
	_, err := NewDefineServerLogger(DefaultVersion, net.ParseIP("fe80::1"))
	require.Error(t, err)
}

func TestResetSwarm_ZeroFilled(t *testing.T) {
	want := []byte{0xF0, 1, 0xFF, 7, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x0F}
	assert.Equal(t, want, NewResetSwarm(DefaultVersion).Encode())
}

func TestLogPacket_Decode(t *testing.T) {
	payload := "1,1,0,512,P,5|0,0,0,0,P,7|0,0,0,0,NP,0"
	wire := append([]byte{Magic, byte(LogToServer), 5, byte(len(payload)), 0}, payload...)
	// trailing garbage past the declared length is ignored
	wire = append(wire, 0xEE, 0xEE)

	got, err := Decode(wire)
	require.NoError(t, err)
	require.NotNil(t, got.Log)
	assert.Equal(t, LogToServer, got.Type())
	assert.Equal(t, byte(5), got.Log.SwarmID)
	assert.Equal(t, payload, got.Log.Payload)
}

func TestLogPacket_RoundTrip(t *testing.T) {
	in := LogPacket{SwarmID: 9, Payload: "0,1,0,3,P,9"}
	got, err := Decode(in.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.Log)
	assert.Equal(t, in, *got.Log)
}

func TestDecode_Malformed(t *testing.T) {
	valid := ControlPacket{Type: LightUpdate, SwarmID: 1}.Encode()

	badTerm := bytes.Clone(valid)
	badTerm[ControlPacketSize-1] = 0x00

	badMagic := bytes.Clone(valid)
	badMagic[0] = 0x00

	unknown := bytes.Clone(valid)
	unknown[1] = 0x42

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte{0xF0, 0, 1}},
		{"control too long", append(bytes.Clone(valid), 0x0F)},
		{"control too short", valid[:ControlPacketSize-1]},
		{"bad terminator", badTerm},
		{"bad magic", badMagic},
		{"unknown type", unknown},
		{"log shorter than declared", []byte{0xF0, byte(LogToServer), 1, 10, 0, 'a', 'b'}},
		{"log non-ascii", []byte{0xF0, byte(LogToServer), 1, 1, 0, 0xC3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestDecode_FourteenByteLogIsLog(t *testing.T) {
	// a control-sized frame is shaped by its type byte, not its length
	data := []byte{0xF0, byte(LogToServer), 3, 8, 0, '0', ',', '1', ',', '0', ',', '7', ',', 0x0F}
	require.Len(t, data, ControlPacketSize)

	pkt, err := Decode(data)
	require.NoError(t, err)
	require.Nil(t, pkt.Control)
	require.NotNil(t, pkt.Log)
	assert.Equal(t, LogToServer, pkt.Type())
	assert.Equal(t, byte(3), pkt.Log.SwarmID)
	assert.Equal(t, "0,1,0,7,", pkt.Log.Payload)
}
