package nativemsg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/goodtune/tabtime/internal/tracker"
)

func frame(payload string) []byte {
	buf := make([]byte, 4+len(payload))
	binary.NativeEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

func TestReadEvents(t *testing.T) {
	var in bytes.Buffer
	in.Write(frame(`{"type":"tab_activated","tabId":4,"url":"https://github.com/"}`))
	in.Write(frame(`{"type":"tab_updated","tabId":4,"url":"https://youtube.com/"}`))
	in.Write(frame(`{"type":"focus_changed","focused":false}`))
	in.Write(frame(`{"type":"suspend"}`))

	conn := NewConn(&in, io.Discard)

	want := []tracker.Event{
		tracker.TabActivated{TabID: 4, URL: "https://github.com/"},
		tracker.TabNavigated{TabID: 4, URL: "https://youtube.com/"},
		tracker.WindowFocusChanged{Focused: false},
		tracker.Suspend{},
	}

	for i, w := range want {
		msg, err := conn.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		ev, err := msg.Event()
		if err != nil {
			t.Fatalf("Event %d failed: %v", i, err)
		}
		if ev != w {
			t.Errorf("Event %d: expected %#v, got %#v", i, w, ev)
		}
	}

	if _, err := conn.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF at end of stream, got %v", err)
	}
}

func TestReadTruncated(t *testing.T) {
	data := frame(`{"type":"suspend"}`)
	conn := NewConn(bytes.NewReader(data[:len(data)-3]), io.Discard)

	if _, err := conn.Read(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadTooLarge(t *testing.T) {
	header := make([]byte, 4)
	binary.NativeEndian.PutUint32(header, MaxInbound+1)
	conn := NewConn(bytes.NewReader(header), io.Discard)

	if _, err := conn.Read(); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}

func TestReadMalformedKeepsStreamAligned(t *testing.T) {
	var data []byte
	data = append(data, frame(`{"type":"tab_activated","tabId":"oops"}`)...)
	data = append(data, frame(`{"type":"suspend"}`)...)
	conn := NewConn(bytes.NewReader(data), io.Discard)

	if _, err := conn.Read(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Expected ErrMalformed, got %v", err)
	}

	msg, err := conn.Read()
	if err != nil {
		t.Fatalf("Expected next frame to decode, got %v", err)
	}
	if msg.Type != TypeSuspend {
		t.Errorf("Expected suspend, got %q", msg.Type)
	}
}

func TestUnknownType(t *testing.T) {
	msg := &Message{Type: "bookmark_added"}
	if _, err := msg.Event(); err == nil {
		t.Error("Expected error for unknown message type")
	}
}

func TestWriteRedirect(t *testing.T) {
	var out bytes.Buffer
	conn := NewConn(nil, &out)

	if err := conn.Redirect(9, "chrome-extension://tabtime/blocked.html?from=x"); err != nil {
		t.Fatalf("Redirect failed: %v", err)
	}
	if err := conn.PollFocus(); err != nil {
		t.Fatalf("PollFocus failed: %v", err)
	}

	reader := NewConn(&out, nil)

	msg, err := reader.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if msg.Type != TypeRedirect || msg.TabID != 9 || msg.URL != "chrome-extension://tabtime/blocked.html?from=x" {
		t.Errorf("Unexpected redirect message: %+v", msg)
	}

	msg, err = reader.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if msg.Type != TypePollFocus {
		t.Errorf("Expected poll_focus, got %s", msg.Type)
	}
}
