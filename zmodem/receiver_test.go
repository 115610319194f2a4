package zmodem

import (
	"context"
	"testing"
	"time"
)

// fakeLink is an in-memory, channel-based SerialDevice pair in the style of
// xx25-go-zmodem's bufferedPipe: writes are non-blocking up to the channel
// capacity, so a scripted peer can queue several bytes ahead of the
// receiver's reads without deadlocking.
type fakeLink struct {
	send chan<- byte
	recv <-chan byte
}

func newFakeLinkPair(bufSize int) (a, b *fakeLink) {
	ab := make(chan byte, bufSize)
	ba := make(chan byte, bufSize)
	return &fakeLink{send: ab, recv: ba}, &fakeLink{send: ba, recv: ab}
}

func (f *fakeLink) Send(b byte) error {
	f.send <- b
	return nil
}

func (f *fakeLink) Recv(timeout time.Duration) (byte, bool, error) {
	if timeout <= 0 {
		return <-f.recv, true, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-f.recv:
		return b, true, nil
	case <-timer.C:
		return 0, false, nil
	}
}

// fakeSender is a scripted ZMODEM sender used only by tests, adapted from
// the shape of a real sender's frame-writing helpers (send a header, send
// a subpacket) without any of a real sender's retry or resume logic.
type fakeSender struct {
	dev *device
}

func newFakeSender(link *fakeLink) *fakeSender {
	return &fakeSender{dev: newDevice(link, noopLogger())}
}

// expectZRINIT reads headers from the receiver until it sees a ZRINIT,
// discarding anything else (the receiver may re-advertise several times).
func (s *fakeSender) expectZRINIT(t *testing.T) {
	t.Helper()
	for i := 0; i < 20; i++ {
		h, err := s.recvHeader(10 * time.Second)
		if err != nil {
			t.Fatalf("waiting for ZRINIT: %v", err)
		}
		if h.Type == ZRINIT {
			return
		}
	}
	t.Fatal("never saw ZRINIT")
}

func (s *fakeSender) recvHeader(timeout time.Duration) (Header, error) {
	h, _, err := receiveFrameHeader(s.dev, timeout, false, 3800)
	return h, err
}

func (s *fakeSender) sendHeader(h Header) error {
	return sendHexHeader(s.dev, h)
}

// sendEscapedByte writes b, escaping it only if it's literally ZDLE, the
// one byte value that would otherwise be misread as an escape introducer.
func (s *fakeSender) sendEscapedByte(b byte) error {
	if b != ZDLE {
		return s.dev.send(b)
	}
	if err := s.dev.send(ZDLE); err != nil {
		return err
	}
	return s.dev.send(b ^ 0x40)
}

// sendSubpacket writes payload followed by ZDLE+marker and a trailing CRC
// (16-bit, since every test here uses BIN16/HEX framing), escaping bytes
// as sendEscapedByte does.
func (s *fakeSender) sendSubpacket(payload []byte, marker byte) error {
	acc := newCRC16()
	for _, b := range payload {
		if err := s.sendEscapedByte(b); err != nil {
			return err
		}
		acc.update(b)
	}
	acc.update(marker)
	if err := s.dev.send(ZDLE); err != nil {
		return err
	}
	if err := s.dev.send(marker); err != nil {
		return err
	}
	sum := acc.sum()
	if err := s.sendEscapedByte(byte(sum >> 8)); err != nil {
		return err
	}
	return s.sendEscapedByte(byte(sum))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 50 * time.Millisecond
	cfg.SessionTimeout = 2 * time.Second
	return cfg
}

func TestReceiverMinimalEmptyFileSession(t *testing.T) {
	receiverLink, senderLink := newFakeLinkPair(256)
	sender := newFakeSender(senderLink)
	r := NewReceiver(receiverLink, testConfig())

	done := make(chan struct{})
	var n int
	var recvErr error
	sink := make([]byte, 64)
	go func() {
		n, recvErr = r.Receive(context.Background(), sink)
		close(done)
	}()

	sender.expectZRINIT(t)
	if err := sender.sendHeader(newFlagsHeader(ZFILE, 0, 0, 0, 0)); err != nil {
		t.Fatalf("send ZFILE: %v", err)
	}
	if err := sender.sendSubpacket(nil, ZCRCW); err != nil {
		t.Fatalf("send metadata subpacket: %v", err)
	}

	if h, err := sender.recvHeader(2 * time.Second); err != nil || h.Type != ZRPOS {
		t.Fatalf("expected ZRPOS, got %+v, err=%v", h, err)
	}
	if err := sender.sendHeader(newPositionHeader(ZEOF, 0)); err != nil {
		t.Fatalf("send ZEOF: %v", err)
	}

	sender.expectZRINIT(t)
	if err := sender.sendHeader(Header{Type: ZFIN}); err != nil {
		t.Fatalf("send ZFIN: %v", err)
	}
	if err := sender.dev.send('O'); err != nil {
		t.Fatal(err)
	}
	if err := sender.dev.send('O'); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never returned")
	}
	if recvErr != nil {
		t.Fatalf("Receive error: %v", recvErr)
	}
	if n != 0 {
		t.Fatalf("expected 0 bytes for an empty file, got %d", n)
	}
}

func TestReceiver256BytePayload(t *testing.T) {
	receiverLink, senderLink := newFakeLinkPair(1024)
	sender := newFakeSender(senderLink)
	r := NewReceiver(receiverLink, testConfig())

	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}

	done := make(chan struct{})
	var n int
	var recvErr error
	sink := make([]byte, 512)
	go func() {
		n, recvErr = r.Receive(context.Background(), sink)
		close(done)
	}()

	sender.expectZRINIT(t)
	if err := sender.sendHeader(newFlagsHeader(ZFILE, 0, 0, 0, 0)); err != nil {
		t.Fatalf("send ZFILE: %v", err)
	}
	if err := sender.sendSubpacket(nil, ZCRCW); err != nil {
		t.Fatalf("send metadata subpacket: %v", err)
	}
	if h, err := sender.recvHeader(2 * time.Second); err != nil || h.Type != ZRPOS {
		t.Fatalf("expected ZRPOS, got %+v, err=%v", h, err)
	}

	if err := sender.sendHeader(newPositionHeader(ZDATA, 0)); err != nil {
		t.Fatalf("send ZDATA: %v", err)
	}
	if err := sender.sendSubpacket(payload[:128], ZCRCG); err != nil {
		t.Fatalf("send first subpacket: %v", err)
	}
	if err := sender.sendSubpacket(payload[128:], ZCRCE); err != nil {
		t.Fatalf("send second subpacket: %v", err)
	}
	if err := sender.sendHeader(newPositionHeader(ZEOF, 256)); err != nil {
		t.Fatalf("send ZEOF: %v", err)
	}

	sender.expectZRINIT(t)
	if err := sender.sendHeader(Header{Type: ZFIN}); err != nil {
		t.Fatalf("send ZFIN: %v", err)
	}
	_ = sender.dev.send('O')
	_ = sender.dev.send('O')

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never returned")
	}
	if recvErr != nil {
		t.Fatalf("Receive error: %v", recvErr)
	}
	if n != 256 {
		t.Fatalf("expected 256 bytes, got %d", n)
	}
	for i := range payload {
		if sink[i] != payload[i] {
			t.Fatalf("sink[%d] = %#02x, want %#02x", i, sink[i], payload[i])
		}
	}
}

func TestReceiverOnMetaReceivesMetadataPayload(t *testing.T) {
	receiverLink, senderLink := newFakeLinkPair(256)
	sender := newFakeSender(senderLink)

	cfg := testConfig()
	var got []byte
	cfg.OnMeta = func(data []byte) { got = data }
	r := NewReceiver(receiverLink, cfg)

	done := make(chan struct{})
	sink := make([]byte, 64)
	go func() {
		_, _ = r.Receive(context.Background(), sink)
		close(done)
	}()

	sender.expectZRINIT(t)
	if err := sender.sendHeader(newFlagsHeader(ZFILE, 0, 0, 0, 0)); err != nil {
		t.Fatalf("send ZFILE: %v", err)
	}
	meta := []byte("boot.bin\x00012345 67890 0 0 0 3 0 0")
	if err := sender.sendSubpacket(meta, ZCRCW); err != nil {
		t.Fatalf("send metadata subpacket: %v", err)
	}
	if h, err := sender.recvHeader(2 * time.Second); err != nil || h.Type != ZRPOS {
		t.Fatalf("expected ZRPOS, got %+v, err=%v", h, err)
	}
	if err := sender.sendHeader(newPositionHeader(ZEOF, 0)); err != nil {
		t.Fatalf("send ZEOF: %v", err)
	}
	sender.expectZRINIT(t)
	if err := sender.sendHeader(Header{Type: ZFIN}); err != nil {
		t.Fatalf("send ZFIN: %v", err)
	}
	_ = sender.dev.send('O')
	_ = sender.dev.send('O')

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never returned")
	}
	if string(got) != string(meta) {
		t.Fatalf("OnMeta got %q, want %q", got, meta)
	}
}

func TestReceiverCancelSequenceDuringIdle(t *testing.T) {
	receiverLink, senderLink := newFakeLinkPair(256)
	sender := newFakeSender(senderLink)
	r := NewReceiver(receiverLink, testConfig())

	done := make(chan struct{})
	var recvErr error
	go func() {
		_, recvErr = r.Receive(context.Background(), make([]byte, 16))
		close(done)
	}()

	sender.expectZRINIT(t)
	for i := 0; i < 5; i++ {
		if err := sender.dev.send(CAN); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never returned")
	}
	if !IsCancelled(recvErr) {
		t.Fatalf("expected ErrCancelled, got %v", recvErr)
	}
}

func TestReceiverIdleReadvertisesZRINIT(t *testing.T) {
	receiverLink, senderLink := newFakeLinkPair(256)
	sender := newFakeSender(senderLink)

	cfg := testConfig()
	cfg.IdleTimeout = 50 * time.Millisecond
	r := NewReceiver(receiverLink, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _, _ = r.Receive(ctx, make([]byte, 16)) }()

	count := 0
	deadline := time.After(2 * time.Second)
	for count < 3 {
		select {
		case <-deadline:
			t.Fatalf("only saw %d ZRINIT advertisements within 2s", count)
		default:
		}
		h, err := sender.recvHeader(500 * time.Millisecond)
		if err != nil {
			continue
		}
		if h.Type == ZRINIT {
			count++
		}
	}
}
