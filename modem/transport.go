package modem

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=modem

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a
// RAK811 module.
//
// A Transport is assumed to be already connected and configured (baud rate,
// parity, data and stop bits). Typical implementations include serial ports,
// TCP bridges to a remote UART, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a RAK811 module.
//
// Dialer abstracts how the connection is created and is intended to be used
// during modem construction only. Once a Transport is obtained, the Dialer is
// no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultBaudRate is the factory setting of the RAK811 UART.
const DefaultBaudRate = 9600

// SerialDialer opens the module over a local serial port.
type SerialDialer struct {
	// PortName is the device path, e.g. "/dev/ttyUSB0" or "COM6".
	PortName string
	// BaudRate is used when Mode is nil. Zero selects DefaultBaudRate.
	BaudRate int
	// Mode overrides the complete line settings.
	Mode *serial.Mode
}

func (d SerialDialer) mode() *serial.Mode {
	if d.Mode != nil {
		return d.Mode
	}
	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("rak811: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("rak811: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := serial.Open(d.PortName, d.mode())
	if err != nil {
		return nil, errors.Wrapf(err, "rak811: open serial port %s", d.PortName)
	}
	return port, nil
}
