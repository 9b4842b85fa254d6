package modem

import (
	"sync"

	"i4.energy/across/rak811/at"
)

// DownlinkEvent is a message received from the network.
type DownlinkEvent struct {
	Port    int
	RSSI    int
	SNR     int
	Payload string // hex
}

// Bytes decodes the hex payload.
func (e DownlinkEvent) Bytes() ([]byte, error) {
	return at.HexToBytes(e.Payload)
}

// ConfirmationEvent accompanies every downlink notification, including the
// empty ones acknowledging a confirmed uplink.
type ConfirmationEvent struct {
	RSSI int
	SNR  int
}

// ConfirmationHandler is called once per downlink notification.
type ConfirmationHandler func(ConfirmationEvent)

// ReceiveHandler is called once per downlink notification carrying a
// payload.
type ReceiveHandler func(DownlinkEvent)

// dispatcher delivers unsolicited downlink notifications to the registered
// handlers, independently of any pending command.
type dispatcher struct {
	mu        sync.RWMutex
	onConfirm ConfirmationHandler
	onReceive ReceiveHandler
}

func (d *dispatcher) setConfirmationHandler(h ConfirmationHandler) {
	d.mu.Lock()
	d.onConfirm = h
	d.mu.Unlock()
}

func (d *dispatcher) setReceiveHandler(h ReceiveHandler) {
	d.mu.Lock()
	d.onReceive = h
	d.mu.Unlock()
}

// dispatch parses line and invokes the handlers. Handlers run without any
// driver lock held. A malformed line returns an error and invokes nothing.
func (d *dispatcher) dispatch(line string) (at.Downlink, error) {
	dl, err := at.ParseDownlink(line)
	if err != nil {
		return dl, err
	}

	d.mu.RLock()
	onConfirm, onReceive := d.onConfirm, d.onReceive
	d.mu.RUnlock()

	if onConfirm != nil {
		onConfirm(ConfirmationEvent{RSSI: dl.RSSI, SNR: dl.SNR})
	}
	if dl.Length > 0 && onReceive != nil {
		onReceive(DownlinkEvent{
			Port:    dl.Port,
			RSSI:    dl.RSSI,
			SNR:     dl.SNR,
			Payload: dl.Payload,
		})
	}
	return dl, nil
}
