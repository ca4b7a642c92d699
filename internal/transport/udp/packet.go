// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"time"

	"lumen/internal/state"
)

/*
Snapshot packet layout (big endian):

	|<-- 4 -->|<---- 8 ---->|<- 4 ->|<- 4 ->|<-- 4 -->|<- 4 ->|<1>|<- 2 ->|<- N*4 ->|
	+---------+-------------+-------+-------+---------+-------+---+-------+---------+
	|   Seq   |  Timestamp  |Volume |  BPM  |Confid.  | Beat  |Flg| Bins  |Spectrum |
	| uint32  | int64 nanos |float32|float32| float32 |Progr. |   |uint16 | float32 |
	+---------+-------------+-------+-------+---------+-------+---+-------+---------+

Flg bit 0 is the beat_detected flag.
*/

// beatFlag marks a snapshot captured on the tick of a confirmed onset.
const beatFlag uint8 = 1 << 0

// Transport packs snapshots into binary datagrams and sends them through
// a Sender. Buffers are reused across sends; the pump is the single
// caller so no locking is needed around them.
type Transport struct {
	sender *Sender

	seq       uint32
	f32Buffer []float32
	packet    *bytes.Buffer
}

// NewTransport wraps a sender for spectra of binCount bins.
func NewTransport(sender *Sender, binCount int) *Transport {
	return &Transport{
		sender:    sender,
		f32Buffer: make([]float32, binCount),
		packet:    new(bytes.Buffer),
	}
}

// Send packs and transmits one snapshot.
func (t *Transport) Send(snap *state.Snapshot) error {
	if len(t.f32Buffer) != len(snap.Frequencies) {
		t.f32Buffer = make([]float32, len(snap.Frequencies))
	}
	for i, v := range snap.Frequencies {
		t.f32Buffer[i] = float32(v)
	}

	t.seq++
	var flags uint8
	if snap.BeatDetected {
		flags |= beatFlag
	}

	t.packet.Reset()
	fields := []any{
		t.seq,
		timestampNanos(),
		float32(snap.Volume),
		float32(snap.BPM),
		float32(snap.BPMConfidence),
		float32(snap.Progress),
		flags,
		uint16(len(t.f32Buffer)),
		t.f32Buffer,
	}
	for _, f := range fields {
		if err := binary.Write(t.packet, binary.BigEndian, f); err != nil {
			return err
		}
	}

	return t.sender.Send(t.packet.Bytes())
}

// Close closes the underlying sender.
func (t *Transport) Close() error {
	return t.sender.Close()
}

func timestampNanos() int64 {
	return time.Now().UnixNano()
}
