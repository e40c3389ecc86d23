package gateway

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

const (
	PayloadVersion byte = 1

	maxRequesterBytes = 1<<16 - 1
	fixedPayloadBytes = 1 + 8 + 8 + 32 + 2
)

// Payload is the withdrawal instruction carried between domains.
//
// Wire layout, big endian:
//
//	version(1) | nonce(8) | stream id(8) | amount(32) | requester length(2) | requester
type Payload struct {
	Version   byte
	Nonce     uint64
	StreamID  uint64
	Amount    *uint256.Int
	Requester string
}

func EncodePayload(p Payload) ([]byte, error) {
	if len(p.Requester) > maxRequesterBytes {
		return nil, fmt.Errorf("%w: requester is %d bytes", core.ErrMalformedPayload, len(p.Requester))
	}
	version := p.Version
	if version == 0 {
		version = PayloadVersion
	}
	out := make([]byte, 0, fixedPayloadBytes+len(p.Requester))
	out = append(out, version)
	out = binary.BigEndian.AppendUint64(out, p.Nonce)
	out = binary.BigEndian.AppendUint64(out, p.StreamID)
	amount := core.CloneAmount(p.Amount).Bytes32()
	out = append(out, amount[:]...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(p.Requester)))
	out = append(out, p.Requester...)
	return out, nil
}

func DecodePayload(raw []byte) (Payload, error) {
	if len(raw) < fixedPayloadBytes {
		return Payload{}, fmt.Errorf("%w: %d bytes is shorter than the %d byte header", core.ErrMalformedPayload, len(raw), fixedPayloadBytes)
	}
	if raw[0] != PayloadVersion {
		return Payload{}, fmt.Errorf("%w: unsupported version %d", core.ErrMalformedPayload, raw[0])
	}
	p := Payload{Version: raw[0]}
	offset := 1
	p.Nonce = binary.BigEndian.Uint64(raw[offset:])
	offset += 8
	p.StreamID = binary.BigEndian.Uint64(raw[offset:])
	offset += 8
	p.Amount = new(uint256.Int).SetBytes(raw[offset : offset+32])
	offset += 32
	size := int(binary.BigEndian.Uint16(raw[offset:]))
	offset += 2
	if len(raw)-offset != size {
		return Payload{}, fmt.Errorf("%w: requester length %d does not match %d trailing bytes", core.ErrMalformedPayload, size, len(raw)-offset)
	}
	p.Requester = string(raw[offset:])
	return p, nil
}
