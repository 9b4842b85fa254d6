package modem

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Responder returns the lines the simulated module prints in reply to a
// command, CRLF included. An empty reply sends nothing.
type Responder func(command string) string

// TestTransport is a test helper that simulates a blocking transport using channels.
// This is needed because the Loop's reader goroutine continuously reads from the transport,
// and we need reads to block until data is available (like a real serial port would).
type TestTransport struct {
	mu        sync.Mutex
	readChan  chan []byte
	pending   []byte
	closed    bool
	writes    []string
	responder Responder
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
	}
}

// SetResponder installs r to answer every subsequent command.
func (t *TestTransport) SetResponder(r Responder) {
	t.mu.Lock()
	t.responder = r
	t.mu.Unlock()
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	command := strings.TrimSuffix(string(p), "\r\n")

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	t.writes = append(t.writes, command)
	r := t.responder
	t.mu.Unlock()

	if r != nil {
		if reply := r(command); reply != "" {
			t.SendData(reply)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.pending) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.pending = data
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the module.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns the commands written so far, without terminators.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// TestDialer hands out a fixed Transport.
type TestDialer struct {
	Transport Transport
}

func (d TestDialer) Dial(_ context.Context) (Transport, error) {
	return d.Transport, nil
}
