// Package nativemsg speaks the browser native messaging protocol: each
// message is a 32-bit length in native byte order followed by that many
// bytes of UTF-8 JSON.
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/goodtune/tabtime/internal/tracker"
)

// Message size limits. Browsers cap messages to the host at 1 MiB; inbound
// messages are bounded to protect the agent from a corrupt stream.
const (
	MaxOutbound = 1 << 20
	MaxInbound  = 4 << 20
)

// Message types
const (
	TypeTabActivated = "tab_activated"
	TypeTabUpdated   = "tab_updated"
	TypeFocusChanged = "focus_changed"
	TypeSuspend      = "suspend"
	TypeRedirect     = "redirect"
	TypePollFocus    = "poll_focus"
)

var (
	// ErrTooLarge is returned for frames exceeding the size limits.
	ErrTooLarge = errors.New("nativemsg: message too large")
	// ErrMalformed is returned for a complete frame whose body is not a
	// valid message. The stream stays aligned, so reading may continue.
	ErrMalformed = errors.New("nativemsg: malformed message")
)

// Message is one frame exchanged with the browser extension.
type Message struct {
	Type    string `json:"type"`
	TabID   int    `json:"tabId,omitempty"`
	URL     string `json:"url,omitempty"`
	Focused bool   `json:"focused,omitempty"`
}

// Event converts an inbound message to a tracker event.
func (m *Message) Event() (tracker.Event, error) {
	switch m.Type {
	case TypeTabActivated:
		return tracker.TabActivated{TabID: m.TabID, URL: m.URL}, nil
	case TypeTabUpdated:
		return tracker.TabNavigated{TabID: m.TabID, URL: m.URL}, nil
	case TypeFocusChanged:
		return tracker.WindowFocusChanged{Focused: m.Focused}, nil
	case TypeSuspend:
		return tracker.Suspend{}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %q", m.Type)
	}
}

// Conn reads and writes framed messages. Writes are safe for concurrent use.
type Conn struct {
	r   io.Reader
	w   io.Writer
	wmu sync.Mutex
}

// NewConn creates a Conn over r and w, normally stdin and stdout.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: r, w: w}
}

// Read blocks for the next message. io.EOF is returned when the browser
// closes the stream between frames.
func (c *Conn) Read() (*Message, error) {
	var length uint32
	if err := binary.Read(c.r, binary.NativeEndian, &length); err != nil {
		return nil, err
	}
	if length > MaxInbound {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(buf, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &msg, nil
}

// Write sends msg as one frame.
func (c *Conn) Write(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if len(data) > MaxOutbound {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	frame := make([]byte, 4+len(data))
	binary.NativeEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.w.Write(frame)
	return err
}

// Redirect asks the extension to navigate tabID to target.
func (c *Conn) Redirect(tabID int, target string) error {
	return c.Write(&Message{Type: TypeRedirect, TabID: tabID, URL: target})
}

// PollFocus asks the extension to report the current focus and active tab.
func (c *Conn) PollFocus() error {
	return c.Write(&Message{Type: TypePollFocus})
}
