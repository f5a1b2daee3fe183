package wire

import (
	"bytes"
	"testing"
	"time"
)

func TestEntryRoundTrip(t *testing.T) {
	stamp := time.Unix(1700000000, 123456789)
	cases := []Entry{
		{Stamp: stamp, TTL: 0, Payload: nil},
		{Stamp: stamp, TTL: 30 * time.Minute, Payload: []byte(`{"product":{"type":"Shoe"}}`)},
		{Stamp: time.Unix(0, 0), TTL: 24 * time.Hour, Payload: []byte{0, 1, 2, 3}},
	}
	for _, tc := range cases {
		got, err := Decode(Encode(tc))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !got.Stamp.Equal(tc.Stamp) {
			t.Fatalf("stamp mismatch: got %v want %v", got.Stamp, tc.Stamp)
		}
		if got.TTL != tc.TTL {
			t.Fatalf("ttl mismatch: got %v want %v", got.TTL, tc.TTL)
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	enc := Encode(Entry{Stamp: time.Now(), TTL: time.Minute, Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on trailing bytes, got %v", err)
	}
}

func TestDecodeRejectsCorruptHeaders(t *testing.T) {
	enc := Encode(Entry{Stamp: time.Now(), TTL: time.Minute, Payload: []byte("abc")})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := Decode(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	if _, err := Decode(enc[:hdrLen-1]); err == nil {
		t.Fatalf("expected error on short header")
	}

	if _, err := Decode(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated payload")
	}

	if _, err := Decode([]byte(`{"value":1}`)); err == nil {
		t.Fatalf("expected error on foreign bytes")
	}
}

func TestExpiredBoundary(t *testing.T) {
	stamp := time.Unix(1000, 0)
	e := Entry{Stamp: stamp, TTL: time.Second}

	if e.Expired(stamp) {
		t.Fatalf("fresh entry reported expired")
	}
	if e.Expired(stamp.Add(time.Second)) {
		t.Fatalf("entry at exactly ttl must still be valid")
	}
	if !e.Expired(stamp.Add(time.Second + time.Nanosecond)) {
		t.Fatalf("entry past ttl must be expired")
	}
}
