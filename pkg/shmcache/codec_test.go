package shmcache

import "testing"

func Test_Codec_Word_RoundTrips(t *testing.T) {
	t.Parallel()

	c := newCodec(make([]byte, 64))
	c.writeWord(8, 123456789)

	if got := c.readWord(8); got != 123456789 {
		t.Fatalf("readWord: got %d, want %d", got, 123456789)
	}
}

func Test_Codec_Key_RoundTrips_With_Space_Padding(t *testing.T) {
	t.Parallel()

	c := newCodec(make([]byte, MaxKeyLen+16))
	c.writeKey(0, []byte("hello"))

	got := c.readKey(0)
	if string(got) != "hello" {
		t.Fatalf("readKey: got %q, want %q", got, "hello")
	}

	if !c.keyEquals(0, []byte("hello")) {
		t.Fatalf("keyEquals: want true for exact match")
	}

	if !c.keyEquals(0, []byte("hello ")) {
		t.Fatalf("keyEquals: want true when the comparison key differs only by trailing space (comparison is on trimmed content)")
	}
}

func Test_Codec_Key_Empty_Value_Is_All_Padding(t *testing.T) {
	t.Parallel()

	c := newCodec(make([]byte, MaxKeyLen))
	c.writeKey(0, nil)

	if got := c.readKey(0); len(got) != 0 {
		t.Fatalf("readKey: got %q, want empty", got)
	}

	if !c.keyEquals(0, nil) {
		t.Fatalf("keyEquals: want true for empty key against empty-written field")
	}
}

func Test_Codec_Bytes_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newCodec(make([]byte, 32))
	c.writeBytes(4, []byte("payload!"))

	if got := c.readBytes(4, 8); string(got) != "payload!" {
		t.Fatalf("readBytes: got %q, want %q", got, "payload!")
	}
}
