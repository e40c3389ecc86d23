package gateway

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

func TestPayloadRoundTrip(t *testing.T) {
	amount, err := uint256.FromDecimal("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	raw, err := EncodePayload(Payload{Nonce: 42, StreamID: 7, Amount: amount, Requester: "0xAlice"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if raw[0] != PayloadVersion {
		t.Fatalf("expected version byte %d, got %d", PayloadVersion, raw[0])
	}
	decoded, err := DecodePayload(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Nonce != 42 || decoded.StreamID != 7 || decoded.Requester != "0xAlice" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
	if !decoded.Amount.Eq(amount) {
		t.Fatalf("expected amount %s, got %s", amount.Dec(), decoded.Amount.Dec())
	}
}

func TestDecodePayload_RejectsMalformedInput(t *testing.T) {
	valid, err := EncodePayload(Payload{Nonce: 1, StreamID: 1, Amount: uint256.NewInt(1), Requester: "alice"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	wrongVersion := append([]byte(nil), valid...)
	wrongVersion[0] = 9

	cases := map[string][]byte{
		"empty":          nil,
		"short header":   valid[:10],
		"wrong version":  wrongVersion,
		"truncated tail": valid[:len(valid)-1],
		"trailing bytes": append(append([]byte(nil), valid...), 0x01),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodePayload(raw); !errors.Is(err, core.ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}
