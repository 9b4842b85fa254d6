package modem

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"i4.energy/across/rak811/at"
)

// readBufferSize is the size of a single transport read.
const readBufferSize = 256

// Modem represents a RAK811 LoRaWAN module that communicates via AT commands.
// Commands are issued synchronously by the caller while a single event loop
// reads the transport, resolves the pending command and dispatches
// unsolicited downlink notifications.
type Modem struct {
	// transport provides the physical connection to the module (serial, TCP, etc.)
	transport Transport
	// config contains the driver configuration settings
	config Config

	// mu guards closed and loopRunning
	mu sync.Mutex
	// closed indicates if the modem has been shut down
	closed bool
	// loopRunning indicates if the Loop is currently running
	loopRunning bool

	// correlator owns the single in-flight command
	correlator correlator
	// dispatcher delivers downlink notifications to the registered handlers
	dispatcher dispatcher
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection; the module itself is not touched
// until Loop runs and the first command is issued.
//
// Returns an error if the configuration is invalid or the transport cannot
// be established.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "dial error")
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	return &Modem{
		transport: transport,
		config:    config,
	}, nil
}

// Loop is the event loop that handles all transport input.
// It must be running before any command is issued:
//
// 1. Reads raw chunks from the transport
// 2. Frames them into CRLF terminated lines
// 3. Resolves the pending command on an error or expected-success line
// 4. Dispatches downlink notifications to the registered handlers
//
// The Loop runs until the provided context is cancelled or the transport
// fails. It's the ONLY goroutine that reads from the transport, so a downlink
// racing with a command response is never lost. A command pending when the
// Loop stops fails with the Loop's error.
//
// Usage:
//
//	m, err := New(ctx, config)
//	if err != nil { return err }
//
//	go m.Loop(ctx)
//
//	if err := m.Initialise(ctx); err != nil { return err }
func (m *Modem) Loop(ctx context.Context) error {
	m.mu.Lock()
	if m.loopRunning {
		m.mu.Unlock()
		return ErrLoopRunning
	}
	m.loopRunning = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loopRunning = false
		m.mu.Unlock()
	}()

	chunks := make(chan []byte, 10)
	readErrs := make(chan error, 1)

	// Start goroutine to read chunks from transport
	go func() {
		defer close(chunks)
		buf := make([]byte, readBufferSize)
		for {
			n, err := m.transport.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErrs <- err
				return
			}
		}
	}()

	framer := at.NewFramer(m.config.maxLineLength)

	for {
		select {
		case <-ctx.Done():
			m.correlator.abort(ctx.Err())
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				var err error
				select {
				case err = <-readErrs:
				default:
					err = ctx.Err()
				}
				if err == nil || err == io.EOF {
					m.correlator.abort(io.EOF)
					return io.EOF
				}
				err = errors.Wrap(err, "read error")
				m.correlator.abort(err)
				return err
			}

			lines, err := framer.Feed(chunk)
			for _, line := range lines {
				m.handleLine(line)
			}
			if err != nil {
				log.WithError(err).Warning("modem: discarding receive buffer")
				droppedInputCount("line_too_long").Inc()
			}
		}
	}
}

// handleLine runs the three independent checks on a received line: error and
// expected-success against the pending command, then downlink.
func (m *Modem) handleLine(line string) {
	if line == "" {
		return
	}

	log.WithFields(log.Fields{
		"line": line,
		"type": at.Classify(line, m.correlator.expected()),
	}).Debug("modem: line received")

	if p, r := m.correlator.resolve(line); p != nil {
		log.WithFields(log.Fields{
			"command": commandFamily(p.command),
			"result":  r,
		}).Debug("modem: command resolved")
	}

	if at.IsDownlink(line) {
		dl, err := m.dispatcher.dispatch(line)
		if err != nil {
			log.WithError(err).WithField("line", line).Warning("modem: dropping malformed downlink")
			droppedInputCount("malformed_downlink").Inc()
			return
		}

		downlinkCount("confirmation").Inc()
		if dl.Length > 0 {
			downlinkCount("message").Inc()
		}
		log.WithFields(log.Fields{
			"port":   dl.Port,
			"rssi":   dl.RSSI,
			"snr":    dl.SNR,
			"length": dl.Length,
		}).Info("modem: downlink received")
	}
}

// OnMessageConfirmation registers the handler called for every downlink
// notification. Handlers run on the Loop goroutine and must not issue
// commands. A nil handler unregisters.
func (m *Modem) OnMessageConfirmation(h ConfirmationHandler) {
	m.dispatcher.setConfirmationHandler(h)
}

// OnReceiveMessage registers the handler called for every downlink carrying
// a payload. Handlers run on the Loop goroutine and must not issue commands.
// A nil handler unregisters.
func (m *Modem) OnReceiveMessage(h ReceiveHandler) {
	m.dispatcher.setReceiveHandler(h)
}

// Close shuts down the modem and releases all resources.
// It closes the transport connection, which stops a running Loop, and marks
// the modem as closed. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.closed = true
	m.mu.Unlock()

	m.correlator.abort(ErrAlreadyClosed)

	if m.transport != nil {
		return m.transport.Close()
	}

	return nil
}

func (m *Modem) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SendCommand writes command to the module and blocks until a line containing
// expected arrives, an error line arrives, or timeout elapses. A timeout of
// zero selects the configured AT timeout.
//
// It returns the line that matched. A device error or a timeout is returned
// as a *CommandError carrying the at.Result. ErrCommandPending is returned,
// without writing anything, while another command is still waiting.
//
// The Loop must be running, otherwise every command times out.
func (m *Modem) SendCommand(ctx context.Context, expected, command string, timeout time.Duration) (string, error) {
	if expected == "" {
		return "", invalidArgument("expected response cannot be empty")
	}
	if command == "" {
		return "", invalidArgument("command cannot be empty")
	}
	if m.transport == nil {
		return "", ErrNotInitialized
	}
	if m.isClosed() {
		return "", ErrAlreadyClosed
	}
	if timeout <= 0 {
		timeout = m.config.atTimeout
	}

	family := commandFamily(command)
	logger := log.WithField("command", family)
	if ctxID, err := uuid.NewV4(); err == nil {
		logger = logger.WithField("ctx_id", ctxID)
	}

	p, err := m.correlator.arm(command, expected, timeout)
	if err != nil {
		return "", err
	}

	start := time.Now()
	logger.WithField("timeout", timeout).Debug("modem: sending command")
	if _, err := m.transport.Write([]byte(command + at.CRLF)); err != nil {
		m.correlator.disarm(p)
		commandCount(family, "write_error").Inc()
		return "", errors.Wrapf(err, "write command %s", family)
	}

	o, err := m.correlator.wait(ctx, p)
	commandDuration(family).Observe(time.Since(start).Seconds())
	if err != nil {
		commandCount(family, "aborted").Inc()
		return "", errors.Wrapf(err, "command %s", family)
	}
	commandCount(family, o.result.String()).Inc()

	logger.WithFields(log.Fields{
		"result":   o.result,
		"duration": time.Since(start),
	}).Debug("modem: command finished")

	if o.result != at.Success {
		return o.line, &CommandError{Command: family, Result: o.result, Line: o.line}
	}
	return o.line, nil
}
