package modem_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brocaar/lorawan/band"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"i4.energy/across/rak811/at"
	"i4.energy/across/rak811/modem"
)

// rak811 answers commands the way the module firmware does.
func rak811(command string) string {
	switch {
	case command == at.CmdWorkModeLoRaWAN, command == at.CmdRestart:
		return "UART1 work mode: RUI_UART_NORMAL\r\nInitialization OK\r\n"
	case strings.HasSuffix(command, "device:sleep:1"):
		return "OK Sleep\r\n"
	case strings.HasSuffix(command, "device:sleep:0"):
		return "OK Wake Up\r\n"
	case command == at.CmdJoin:
		return "OK Join Success\r\n"
	case command == at.CmdVersion:
		return "OK V3.0.0.14.H\r\n"
	default:
		return "OK\r\n"
	}
}

const (
	devEUI  = "0102030405060708"
	appEUI  = "70B3D57ED0000001"
	appKey  = "000102030405060708090A0B0C0D0E0F"
	devAddr = "26011BDA"
	nwksKey = "101112131415161718191A1B1C1D1E1F"
	appsKey = "202122232425262728292A2B2C2D2E2F"
)

func TestFacadeCommands(t *testing.T) {
	longPayload := strings.Repeat("AB", modem.MaxPayloadBytes)

	tests := []struct {
		name   string
		call   func(ctx context.Context, m *modem.Modem) error
		writes []string
	}{
		{
			name:   "Initialise",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Initialise(ctx) },
			writes: []string{"at+set_config=lora:work_mode:0"},
		},
		{
			name:   "Class A",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Class(ctx, modem.ClassA) },
			writes: []string{"at+set_config=lora:class:0"},
		},
		{
			name:   "Class C",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Class(ctx, modem.ClassC) },
			writes: []string{"at+set_config=lora:class:2"},
		},
		{
			name:   "Confirm unconfirmed",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Confirm(ctx, modem.Unconfirmed) },
			writes: []string{"at+set_config=lora:confirm:0"},
		},
		{
			name:   "Confirm confirmed",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Confirm(ctx, modem.Confirmed) },
			writes: []string{"at+set_config=lora:confirm:1"},
		},
		{
			name:   "Confirm proprietary",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Confirm(ctx, modem.Proprietary) },
			writes: []string{"at+set_config=lora:confirm:3"},
		},
		{
			name:   "Region",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Region(ctx, "AS923") },
			writes: []string{"at+set_config=lora:region:AS923"},
		},
		{
			name:   "RegionBand",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.RegionBand(ctx, band.EU868) },
			writes: []string{"at+set_config=lora:region:EU868"},
		},
		{
			name:   "Sleep",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Sleep(ctx) },
			writes: []string{"at+set_config=device:sleep:1"},
		},
		{
			name:   "Wakeup",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Wakeup(ctx) },
			writes: []string{"at+set_config=device:sleep:0"},
		},
		{
			name:   "AdrOn",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.AdrOn(ctx) },
			writes: []string{"at+set_config=lora:adr:1"},
		},
		{
			name:   "AdrOff",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.AdrOff(ctx) },
			writes: []string{"at+set_config=lora:adr:0"},
		},
		{
			name:   "Restart",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Restart(ctx) },
			writes: []string{"at+set_config=device:restart"},
		},
		{
			name: "OtaaInitialise",
			call: func(ctx context.Context, m *modem.Modem) error {
				return m.OtaaInitialise(ctx, devEUI, appEUI, appKey)
			},
			writes: []string{
				"at+set_config=lora:join_mode:0",
				"at+set_config=lora:dev_eui:" + devEUI,
				"at+set_config=lora:app_eui:" + appEUI,
				"at+set_config=lora:app_key:" + appKey,
			},
		},
		{
			name: "AbpInitialise",
			call: func(ctx context.Context, m *modem.Modem) error {
				return m.AbpInitialise(ctx, devAddr, nwksKey, appsKey)
			},
			writes: []string{
				"at+set_config=lora:join_mode:1",
				"at+set_config=lora:dev_addr:" + devAddr,
				"at+set_config=lora:nwks_key:" + nwksKey,
				"at+set_config=lora:apps_key:" + appsKey,
			},
		},
		{
			name:   "Join",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Join(ctx, 10*time.Second) },
			writes: []string{"at+join"},
		},
		{
			name:   "Send",
			call:   func(ctx context.Context, m *modem.Modem) error { return m.Send(ctx, 1, "0102", 5*time.Second) },
			writes: []string{"at+send=lora:1:0102"},
		},
		{
			name: "Send longest payload",
			call: func(ctx context.Context, m *modem.Modem) error {
				return m.Send(ctx, modem.MaxPort, longPayload, 5*time.Second)
			},
			writes: []string{"at+send=lora:223:" + longPayload},
		},
		{
			name: "SendBytes",
			call: func(ctx context.Context, m *modem.Modem) error {
				return m.SendBytes(ctx, 2, []byte{0xde, 0xad, 0x0b}, 5*time.Second)
			},
			writes: []string{"at+send=lora:2:DEAD0B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, tr := newTestModem(t)
			tr.SetResponder(rak811)

			require.NoError(t, tt.call(context.Background(), m))
			require.Equal(t, tt.writes, tr.Writes())
		})
	}
}

func TestFacadeValidation(t *testing.T) {
	tests := []struct {
		name string
		call func(ctx context.Context, m *modem.Modem) error
	}{
		{"Region too short", func(ctx context.Context, m *modem.Modem) error { return m.Region(ctx, "AS92") }},
		{"Region too long", func(ctx context.Context, m *modem.Modem) error { return m.Region(ctx, "EU8680") }},
		{"Class B", func(ctx context.Context, m *modem.Modem) error { return m.Class(ctx, modem.ClassB) }},
		{"Class undefined", func(ctx context.Context, m *modem.Modem) error { return m.Class(ctx, modem.ClassUndefined) }},
		{"Confirm undefined", func(ctx context.Context, m *modem.Modem) error { return m.Confirm(ctx, modem.ConfirmUndefined) }},
		{"Confirm out of range", func(ctx context.Context, m *modem.Modem) error { return m.Confirm(ctx, modem.LoRaConfirmType(9)) }},
		{"OTAA short device EUI", func(ctx context.Context, m *modem.Modem) error {
			return m.OtaaInitialise(ctx, devEUI[:15], appEUI, appKey)
		}},
		{"OTAA long application EUI", func(ctx context.Context, m *modem.Modem) error {
			return m.OtaaInitialise(ctx, devEUI, appEUI+"0", appKey)
		}},
		{"OTAA non-hex application key", func(ctx context.Context, m *modem.Modem) error {
			return m.OtaaInitialise(ctx, devEUI, appEUI, strings.Repeat("G", 32))
		}},
		{"ABP short device address", func(ctx context.Context, m *modem.Modem) error {
			return m.AbpInitialise(ctx, "26011BD", nwksKey, appsKey)
		}},
		{"ABP short network session key", func(ctx context.Context, m *modem.Modem) error {
			return m.AbpInitialise(ctx, devAddr, nwksKey[:30], appsKey)
		}},
		{"ABP long application session key", func(ctx context.Context, m *modem.Modem) error {
			return m.AbpInitialise(ctx, devAddr, nwksKey, appsKey+"00")
		}},
		{"Join without timeout", func(ctx context.Context, m *modem.Modem) error { return m.Join(ctx, 0) }},
		{"Send port zero", func(ctx context.Context, m *modem.Modem) error { return m.Send(ctx, 0, "01", time.Second) }},
		{"Send port too high", func(ctx context.Context, m *modem.Modem) error { return m.Send(ctx, 224, "01", time.Second) }},
		{"Send empty payload", func(ctx context.Context, m *modem.Modem) error { return m.Send(ctx, 1, "", time.Second) }},
		{"Send payload too long", func(ctx context.Context, m *modem.Modem) error {
			return m.Send(ctx, 1, strings.Repeat("AB", modem.MaxPayloadBytes)+"AB", time.Second)
		}},
		{"Send odd payload", func(ctx context.Context, m *modem.Modem) error { return m.Send(ctx, 1, "ABC", time.Second) }},
		{"Send non-hex payload", func(ctx context.Context, m *modem.Modem) error { return m.Send(ctx, 1, "ZZ", time.Second) }},
		{"Send without timeout", func(ctx context.Context, m *modem.Modem) error { return m.Send(ctx, 1, "01", 0) }},
		{"SendBytes empty", func(ctx context.Context, m *modem.Modem) error { return m.SendBytes(ctx, 1, nil, time.Second) }},
		{"SendBytes too long", func(ctx context.Context, m *modem.Modem) error {
			return m.SendBytes(ctx, 1, make([]byte, modem.MaxPayloadBytes+1), time.Second)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			// No Write is expected; any write fails the test
			mockTransport := modem.NewMockTransport(ctrl)
			mockDialer := modem.NewMockDialer(ctrl)
			mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil)
			mockTransport.EXPECT().Close().Return(nil)

			config, err := modem.NewConfigBuilder().WithDialer(mockDialer).Build()
			require.NoError(t, err)
			m, err := modem.New(context.Background(), config)
			require.NoError(t, err)
			defer m.Close()

			err = tt.call(context.Background(), m)
			require.ErrorIs(t, err, modem.ErrInvalidArgument)
			require.Equal(t, at.Undefined, modem.ResultOf(err))
		})
	}
}

func TestFacadeFailures(t *testing.T) {
	t.Run("OTAA stops at the first rejected command", func(t *testing.T) {
		m, tr := newTestModem(t)
		tr.SetResponder(func(command string) string {
			if strings.Contains(command, "app_eui") {
				return "ERROR: 2\r\n"
			}
			return "OK\r\n"
		})

		err := m.OtaaInitialise(context.Background(), devEUI, appEUI, appKey)
		require.ErrorIs(t, err, at.ATCommandInvalidParameter)
		require.Len(t, tr.Writes(), 3)
	})

	t.Run("Join rejected by the network", func(t *testing.T) {
		m, tr := newTestModem(t)
		tr.SetResponder(reply("ERROR: 99\r\n"))

		err := m.Join(context.Background(), time.Second)
		require.ErrorIs(t, err, at.LoRaJoinFailed)
	})

	t.Run("Join times out", func(t *testing.T) {
		m, _ := newTestModem(t)

		err := m.Join(context.Background(), 30*time.Millisecond)
		require.ErrorIs(t, err, at.ATResponseTimeout)
	})

	t.Run("Send while not joined", func(t *testing.T) {
		m, tr := newTestModem(t)
		tr.SetResponder(reply("ERROR: 86\r\n"))

		err := m.SendBytes(context.Background(), 1, []byte("hi"), time.Second)
		require.Equal(t, at.LoRaDeviceNotJoinedNetwork, modem.ResultOf(err))
	})
}

func TestVersion(t *testing.T) {
	m, tr := newTestModem(t)
	tr.SetResponder(rak811)

	v, err := m.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, "V3.0.0.14.H", v)
}

func TestTypedKeys(t *testing.T) {
	t.Run("OTAA", func(t *testing.T) {
		keys, err := modem.ParseOTAAKeys(devEUI, appEUI, appKey)
		require.NoError(t, err)

		m, tr := newTestModem(t)
		tr.SetResponder(rak811)

		require.NoError(t, m.OTAA(context.Background(), keys))
		require.Equal(t, []string{
			"at+set_config=lora:join_mode:0",
			"at+set_config=lora:dev_eui:" + strings.ToLower(devEUI),
			"at+set_config=lora:app_eui:" + strings.ToLower(appEUI),
			"at+set_config=lora:app_key:" + strings.ToLower(appKey),
		}, tr.Writes())
	})

	t.Run("ABP", func(t *testing.T) {
		keys, err := modem.ParseABPKeys(devAddr, nwksKey, appsKey)
		require.NoError(t, err)

		m, tr := newTestModem(t)
		tr.SetResponder(rak811)

		require.NoError(t, m.ABP(context.Background(), keys))
		require.Equal(t, []string{
			"at+set_config=lora:join_mode:1",
			"at+set_config=lora:dev_addr:" + strings.ToLower(devAddr),
			"at+set_config=lora:nwks_key:" + strings.ToLower(nwksKey),
			"at+set_config=lora:apps_key:" + strings.ToLower(appsKey),
		}, tr.Writes())
	})

	t.Run("Parse errors", func(t *testing.T) {
		_, err := modem.ParseOTAAKeys("xyz", appEUI, appKey)
		require.Error(t, err)
		_, err = modem.ParseABPKeys(devAddr, nwksKey, "00")
		require.Error(t, err)
	})
}
