package modem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brocaar/lorawan"
	"github.com/brocaar/lorawan/band"
	"github.com/pkg/errors"

	"i4.energy/across/rak811/at"
)

// LoRaClass is the LoRaWAN device class.
type LoRaClass int

const (
	ClassUndefined LoRaClass = iota
	ClassA
	ClassB
	ClassC
)

func (c LoRaClass) String() string {
	switch c {
	case ClassA:
		return "A"
	case ClassB:
		return "B"
	case ClassC:
		return "C"
	default:
		return "Undefined"
	}
}

// LoRaConfirmType selects how uplinks are sent.
type LoRaConfirmType int

const (
	ConfirmUndefined LoRaConfirmType = iota
	Unconfirmed
	Confirmed
	Multicast
	Proprietary
)

func (c LoRaConfirmType) String() string {
	switch c {
	case Unconfirmed:
		return "Unconfirmed"
	case Confirmed:
		return "Confirmed"
	case Multicast:
		return "Multicast"
	case Proprietary:
		return "Proprietary"
	default:
		return "Undefined"
	}
}

// Argument limits accepted by the module.
const (
	RegionLength    = 5
	DevEUILength    = 16
	AppEUILength    = 16
	AppKeyLength    = 32
	DevAddrLength   = 8
	NwksKeyLength   = 32
	AppsKeyLength   = 32
	MinPort         = 1
	MaxPort         = 223
	MaxPayloadBytes = 242
	MaxPayloadHex   = MaxPayloadBytes * 2
)

// Initialise puts the module into LoRaWAN work mode.
func (m *Modem) Initialise(ctx context.Context) error {
	_, err := m.SendCommand(ctx, at.InitOK, at.CmdWorkModeLoRaWAN, 0)
	return err
}

// Class sets the device class. Only class A and C are supported by the
// module firmware.
func (m *Modem) Class(ctx context.Context, class LoRaClass) error {
	var v int
	switch class {
	case ClassA:
		v = 0
	case ClassC:
		v = 2
	default:
		return invalidArgument("class %s is not supported", class)
	}
	_, err := m.SendCommand(ctx, at.OK, fmt.Sprintf(at.CmdClass, v), 0)
	return err
}

// Confirm sets the uplink confirmation type.
func (m *Modem) Confirm(ctx context.Context, typ LoRaConfirmType) error {
	if typ < Unconfirmed || typ > Proprietary {
		return invalidArgument("confirm type %d is not supported", int(typ))
	}
	_, err := m.SendCommand(ctx, at.OK, fmt.Sprintf(at.CmdConfirm, int(typ)-1), 0)
	return err
}

// Region sets the frequency plan, e.g. "AS923" or "EU868".
func (m *Modem) Region(ctx context.Context, region string) error {
	if len(region) != RegionLength {
		return invalidArgument("region must be %d characters, got %d", RegionLength, len(region))
	}
	_, err := m.SendCommand(ctx, at.OK, fmt.Sprintf(at.CmdRegion, region), 0)
	return err
}

// RegionBand sets the frequency plan from a LoRaWAN band name.
func (m *Modem) RegionBand(ctx context.Context, name band.Name) error {
	return m.Region(ctx, string(name))
}

// Sleep puts the module into low power mode.
func (m *Modem) Sleep(ctx context.Context) error {
	_, err := m.SendCommand(ctx, at.SleepOK, fmt.Sprintf(at.CmdSleep, 1), 0)
	return err
}

// Wakeup leaves low power mode.
func (m *Modem) Wakeup(ctx context.Context) error {
	_, err := m.SendCommand(ctx, at.WakeUpOK, fmt.Sprintf(at.CmdSleep, 0), 0)
	return err
}

// AdrOn enables adaptive data rate.
func (m *Modem) AdrOn(ctx context.Context) error {
	_, err := m.SendCommand(ctx, at.OK, fmt.Sprintf(at.CmdAdr, 1), 0)
	return err
}

// AdrOff disables adaptive data rate.
func (m *Modem) AdrOff(ctx context.Context) error {
	_, err := m.SendCommand(ctx, at.OK, fmt.Sprintf(at.CmdAdr, 0), 0)
	return err
}

// Restart reboots the module and waits for it to report ready.
func (m *Modem) Restart(ctx context.Context) error {
	_, err := m.SendCommand(ctx, at.InitOK, at.CmdRestart, 0)
	return err
}

// Version returns the firmware version reported by the module.
func (m *Modem) Version(ctx context.Context) (string, error) {
	line, err := m.SendCommand(ctx, at.OK, at.CmdVersion, 0)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(line, at.OK)), nil
}

func checkHex(name, value string, length int) error {
	if len(value) != length {
		return invalidArgument("%s must be %d hex characters, got %d", name, length, len(value))
	}
	if !at.IsHex(value) {
		return invalidArgument("%s must be hexadecimal", name)
	}
	return nil
}

// AbpInitialise selects activation by personalisation and stores the
// session. All arguments are validated before anything is written.
func (m *Modem) AbpInitialise(ctx context.Context, devAddr, nwksKey, appsKey string) error {
	if err := checkHex("device address", devAddr, DevAddrLength); err != nil {
		return err
	}
	if err := checkHex("network session key", nwksKey, NwksKeyLength); err != nil {
		return err
	}
	if err := checkHex("application session key", appsKey, AppsKeyLength); err != nil {
		return err
	}

	return m.sequence(ctx,
		fmt.Sprintf(at.CmdJoinMode, at.JoinModeABP),
		fmt.Sprintf(at.CmdDevAddr, devAddr),
		fmt.Sprintf(at.CmdNwksKey, nwksKey),
		fmt.Sprintf(at.CmdAppsKey, appsKey),
	)
}

// OtaaInitialise selects over the air activation and stores the join
// credentials. All arguments are validated before anything is written.
func (m *Modem) OtaaInitialise(ctx context.Context, devEUI, appEUI, appKey string) error {
	if err := checkHex("device EUI", devEUI, DevEUILength); err != nil {
		return err
	}
	if err := checkHex("application EUI", appEUI, AppEUILength); err != nil {
		return err
	}
	if err := checkHex("application key", appKey, AppKeyLength); err != nil {
		return err
	}

	return m.sequence(ctx,
		fmt.Sprintf(at.CmdJoinMode, at.JoinModeOTAA),
		fmt.Sprintf(at.CmdDevEUI, devEUI),
		fmt.Sprintf(at.CmdAppEUI, appEUI),
		fmt.Sprintf(at.CmdAppKey, appKey),
	)
}

// sequence issues commands in order, stopping at the first failure.
func (m *Modem) sequence(ctx context.Context, commands ...string) error {
	for _, cmd := range commands {
		if _, err := m.SendCommand(ctx, at.OK, cmd, 0); err != nil {
			return err
		}
	}
	return nil
}

// Join starts an activation and waits up to timeout for the network to
// accept it.
func (m *Modem) Join(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return invalidArgument("join timeout must be positive")
	}
	_, err := m.SendCommand(ctx, at.JoinSuccess, at.CmdJoin, timeout)
	return err
}

// Send transmits a hex encoded payload on port and waits up to timeout for
// the module to accept it.
func (m *Modem) Send(ctx context.Context, port int, payload string, timeout time.Duration) error {
	if port < MinPort || port > MaxPort {
		return invalidArgument("port must be in [%d, %d], got %d", MinPort, MaxPort, port)
	}
	if len(payload) == 0 || len(payload) > MaxPayloadHex {
		return invalidArgument("payload must be 1 to %d hex characters, got %d", MaxPayloadHex, len(payload))
	}
	if !at.IsHex(payload) {
		return invalidArgument("payload must be hexadecimal of even length")
	}
	if timeout <= 0 {
		return invalidArgument("send timeout must be positive")
	}
	_, err := m.SendCommand(ctx, at.OK, fmt.Sprintf(at.CmdSend, port, payload), timeout)
	return err
}

// SendBytes transmits payload on port.
func (m *Modem) SendBytes(ctx context.Context, port int, payload []byte, timeout time.Duration) error {
	if len(payload) == 0 || len(payload) > MaxPayloadBytes {
		return invalidArgument("payload must be 1 to %d bytes, got %d", MaxPayloadBytes, len(payload))
	}
	payloadHex, err := at.BytesToHex(payload)
	if err != nil {
		return invalidArgument("%v", err)
	}
	return m.Send(ctx, port, payloadHex, timeout)
}

// OTAAKeys are the over the air activation credentials.
type OTAAKeys struct {
	DevEUI lorawan.EUI64
	AppEUI lorawan.EUI64
	AppKey lorawan.AES128Key
}

// ParseOTAAKeys decodes hex encoded credentials.
func ParseOTAAKeys(devEUI, appEUI, appKey string) (OTAAKeys, error) {
	var k OTAAKeys
	if err := k.DevEUI.UnmarshalText([]byte(devEUI)); err != nil {
		return k, errors.Wrap(err, "parse device EUI")
	}
	if err := k.AppEUI.UnmarshalText([]byte(appEUI)); err != nil {
		return k, errors.Wrap(err, "parse application EUI")
	}
	if err := k.AppKey.UnmarshalText([]byte(appKey)); err != nil {
		return k, errors.Wrap(err, "parse application key")
	}
	return k, nil
}

// ABPKeys are the activation by personalisation session parameters.
type ABPKeys struct {
	DevAddr lorawan.DevAddr
	NwkSKey lorawan.AES128Key
	AppSKey lorawan.AES128Key
}

// ParseABPKeys decodes hex encoded session parameters.
func ParseABPKeys(devAddr, nwkSKey, appSKey string) (ABPKeys, error) {
	var k ABPKeys
	if err := k.DevAddr.UnmarshalText([]byte(devAddr)); err != nil {
		return k, errors.Wrap(err, "parse device address")
	}
	if err := k.NwkSKey.UnmarshalText([]byte(nwkSKey)); err != nil {
		return k, errors.Wrap(err, "parse network session key")
	}
	if err := k.AppSKey.UnmarshalText([]byte(appSKey)); err != nil {
		return k, errors.Wrap(err, "parse application session key")
	}
	return k, nil
}

// OTAA stores typed join credentials, see OtaaInitialise.
func (m *Modem) OTAA(ctx context.Context, k OTAAKeys) error {
	return m.OtaaInitialise(ctx, k.DevEUI.String(), k.AppEUI.String(), k.AppKey.String())
}

// ABP stores a typed session, see AbpInitialise.
func (m *Modem) ABP(ctx context.Context, k ABPKeys) error {
	return m.AbpInitialise(ctx, k.DevAddr.String(), k.NwkSKey.String(), k.AppSKey.String())
}
