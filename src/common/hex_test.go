package common

import (
	"bytes"
	"testing"
)

func TestHexRoundTrip(t *testing.T) {
	data := []byte{0x01, 0xab, 0xff}

	encoded := EncodeToString(data)

	if encoded[:2] != "0X" {
		t.Fatalf("encoding should carry the 0X prefix, got %s", encoded)
	}

	decoded, err := DecodeFromString(encoded)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(decoded, data) {
		t.Fatal("decoding should invert encoding")
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := DecodeFromString("0Xnothex"); err == nil {
		t.Fatal("garbage input should be rejected")
	}
}

func TestHash32Stable(t *testing.T) {
	data := []byte("some data")

	if Hash32(data) != Hash32(data) {
		t.Fatal("Hash32 should be deterministic")
	}

	if Hash32(data) == Hash32([]byte("other data")) {
		t.Fatal("different inputs should hash differently")
	}
}
