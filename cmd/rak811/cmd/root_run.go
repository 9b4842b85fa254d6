package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"i4.energy/across/rak811/internal/api"
	"i4.energy/across/rak811/internal/config"
	"i4.energy/across/rak811/internal/forwarder"
	"i4.energy/across/rak811/modem"
)

var (
	device    *modem.Modem
	deviceMu  sync.Mutex
	fwd       *forwarder.Forwarder
	apiServer *http.Server

	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan error
)

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	tasks := []func() error{
		setLogLevel,
		printStartMessage,
		setupModem,
		setupForwarder,
		setupDevice,
		setupAPI,
		startUplinks,
	}

	for _, t := range tasks {
		if err := t(); err != nil {
			log.Fatal(err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	loopRunning := true
	select {
	case s := <-sigChan:
		log.WithField("signal", s).Info("signal received")
	case err := <-loopDone:
		log.WithError(err).Error("modem loop stopped")
		loopRunning = false
	}

	log.Warning("stopping rak811")
	return shutdown(loopRunning)
}

func setLogLevel() error {
	log.SetLevel(log.Level(uint8(config.C.General.LogLevel)))
	return nil
}

func printStartMessage() error {
	log.WithFields(log.Fields{
		"version": version,
		"port":    config.C.Serial.Port,
		"region":  config.C.Device.Region,
	}).Info("starting rak811")
	return nil
}

func openModem(ctx context.Context) (*modem.Modem, error) {
	mc, err := modem.NewConfigBuilder().
		WithDialer(modem.SerialDialer{
			PortName: config.C.Serial.Port,
			BaudRate: config.C.Serial.BaudRate,
		}).
		WithATTimeout(config.C.Device.ATTimeout).
		WithMaxLineLength(config.C.Device.MaxLineLength).
		Build()
	if err != nil {
		return nil, errors.Wrap(err, "modem config error")
	}

	m, err := modem.New(ctx, mc)
	if err != nil {
		return nil, errors.Wrap(err, "open modem error")
	}
	return m, nil
}

func setupModem() error {
	var err error
	device, err = openModem(ctx)
	if err != nil {
		return err
	}

	loopDone = make(chan error, 1)
	go func() {
		loopDone <- device.Loop(ctx)
	}()
	return nil
}

func setupForwarder() error {
	if config.C.MQTT.Server == "" {
		device.OnMessageConfirmation(logConfirmation)
		device.OnReceiveMessage(logMessage)
		return nil
	}

	var err error
	fwd, err = forwarder.New(forwarder.Config{
		Server:        config.C.MQTT.Server,
		Username:      config.C.MQTT.Username,
		Password:      config.C.MQTT.Password,
		QOS:           config.C.MQTT.QOS,
		CleanSession:  config.C.MQTT.CleanSession,
		ClientID:      config.C.MQTT.ClientID,
		TopicTemplate: config.C.MQTT.TopicTemplate,
		DevEUI:        deviceID(config.C),
	})
	if err != nil {
		return errors.Wrap(err, "setup forwarder error")
	}

	device.OnMessageConfirmation(fwd.HandleConfirmation)
	device.OnReceiveMessage(fwd.HandleMessage)
	return nil
}

func setupDevice() error {
	if err := bringUp(ctx, device, config.C); err != nil {
		return errors.Wrap(err, "setup device error")
	}
	return nil
}

func setupAPI() error {
	if config.C.API.Bind == "" {
		return nil
	}

	apiServer = &http.Server{
		Addr: config.C.API.Bind,
		Handler: &api.Server{
			Modem:       device,
			Lock:        &deviceMu,
			SendTimeout: config.C.Device.SendTimeout,
		},
	}

	go func() {
		log.WithField("bind", apiServer.Addr).Info("api: starting api server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("api: api server error")
		}
	}()
	return nil
}

func startUplinks() error {
	if config.C.Uplink.Interval <= 0 {
		return nil
	}

	go periodicUplink(ctx, device, &deviceMu, config.C)
	return nil
}

// shutdown stops the api server and the modem. When loopRunning is set it
// waits for Loop to return before the forwarder is closed.
func shutdown(loopRunning bool) error {
	if apiServer != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer scancel()

		log.Info("api: closing api server")
		if err := apiServer.Shutdown(sctx); err != nil {
			log.WithError(err).Error("api: shutdown api server error")
		}
	}

	cancel()
	if loopRunning {
		<-loopDone
	}
	device.OnMessageConfirmation(nil)
	device.OnReceiveMessage(nil)
	if fwd != nil {
		fwd.Close()
	}

	log.Info("closing modem connection")
	if err := device.Close(); err != nil {
		return errors.Wrap(err, "close modem error")
	}
	return nil
}

// bringUp configures the module from c and joins the network.
func bringUp(ctx context.Context, m *modem.Modem, c config.Config) error {
	class, err := parseClass(c.Device.Class)
	if err != nil {
		return err
	}
	confirm := modem.Unconfirmed
	if c.Device.Confirmed {
		confirm = modem.Confirmed
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"initialise", func() error { return m.Initialise(ctx) }},
		{"region", func() error { return m.RegionBand(ctx, c.Device.Region) }},
		{"class", func() error { return m.Class(ctx, class) }},
		{"adr", func() error {
			if c.Device.ADR {
				return m.AdrOn(ctx)
			}
			return m.AdrOff(ctx)
		}},
		{"confirm", func() error { return m.Confirm(ctx, confirm) }},
		{"activation", func() error { return activate(ctx, m, c) }},
	}

	for _, s := range steps {
		if err := s.fn(); err != nil {
			return errors.Wrapf(err, "%s error", s.name)
		}
		log.WithField("step", s.name).Debug("device: step completed")
	}

	if strings.EqualFold(c.Device.Activation, "abp") {
		log.Info("device: abp session configured")
		return nil
	}
	return join(ctx, m, c)
}

func parseClass(s string) (modem.LoRaClass, error) {
	switch strings.ToUpper(s) {
	case "A", "":
		return modem.ClassA, nil
	case "C":
		return modem.ClassC, nil
	default:
		return modem.ClassUndefined, errors.Errorf("unsupported device class %q", s)
	}
}

func activate(ctx context.Context, m *modem.Modem, c config.Config) error {
	switch strings.ToLower(c.Device.Activation) {
	case "otaa", "":
		keys, err := modem.ParseOTAAKeys(c.Device.OTAA.DevEUI, c.Device.OTAA.AppEUI, c.Device.OTAA.AppKey)
		if err != nil {
			return err
		}
		return m.OTAA(ctx, keys)
	case "abp":
		keys, err := modem.ParseABPKeys(c.Device.ABP.DevAddr, c.Device.ABP.NwkSKey, c.Device.ABP.AppSKey)
		if err != nil {
			return err
		}
		return m.ABP(ctx, keys)
	default:
		return errors.Errorf("unsupported activation %q", c.Device.Activation)
	}
}

func join(ctx context.Context, m *modem.Modem, c config.Config) error {
	attempts := c.Device.JoinRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		log.WithField("attempt", i).Info("device: joining network")
		if err = m.Join(ctx, c.Device.JoinTimeout); err == nil {
			log.Info("device: joined network")
			return nil
		}
		log.WithError(err).WithField("attempt", i).Warning("device: join failed")

		if i < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Device.JoinInterval):
			}
		}
	}
	return errors.Wrap(err, "join error")
}

// periodicUplink sends an uplink every c.Uplink.Interval. mu serializes the
// uplinks with the other command issuers of m.
func periodicUplink(ctx context.Context, m *modem.Modem, mu sync.Locker, c config.Config) {
	ticker := time.NewTicker(c.Uplink.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			err := uplink(ctx, m, c)
			mu.Unlock()
			if err != nil {
				log.WithError(err).WithField("result", modem.ResultOf(err)).Error("device: periodic uplink error")
			}
		}
	}
}

func uplink(ctx context.Context, m *modem.Modem, c config.Config) error {
	if c.Uplink.Sleep {
		if err := m.Wakeup(ctx); err != nil {
			return errors.Wrap(err, "wakeup error")
		}
	}

	if err := m.Send(ctx, c.Uplink.Port, c.Uplink.Payload, c.Device.SendTimeout); err != nil {
		return errors.Wrap(err, "send error")
	}
	log.WithField("f_port", c.Uplink.Port).Info("device: uplink sent")

	if c.Uplink.Sleep {
		if err := m.Sleep(ctx); err != nil {
			return errors.Wrap(err, "sleep error")
		}
	}
	return nil
}

// deviceID names the device in forwarded topics.
func deviceID(c config.Config) string {
	if strings.EqualFold(c.Device.Activation, "abp") {
		return strings.ToLower(c.Device.ABP.DevAddr)
	}
	return strings.ToLower(c.Device.OTAA.DevEUI)
}

func logConfirmation(e modem.ConfirmationEvent) {
	log.WithFields(log.Fields{
		"rssi": e.RSSI,
		"snr":  e.SNR,
	}).Info("device: downlink confirmation")
}

func logMessage(e modem.DownlinkEvent) {
	log.WithFields(log.Fields{
		"f_port":  e.Port,
		"rssi":    e.RSSI,
		"snr":     e.SNR,
		"payload": e.Payload,
	}).Info("device: downlink message")
}
