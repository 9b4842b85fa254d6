// Package forwarder publishes the downlink notifications of a RAK811 module
// to an MQTT broker.
package forwarder

import (
	"bytes"
	"encoding/json"
	"sync"
	"text/template"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"i4.energy/across/rak811/modem"
)

const (
	eventConfirmation = "confirmation"
	eventDownlink     = "downlink"

	publishTimeout = 5 * time.Second
	queueSize      = 32
)

var pc = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rak811_forwarder_publish_count",
	Help: "The number of events published to MQTT (per event and result).",
}, []string{"event", "result"})

func publishCount(event, result string) prometheus.Counter {
	return pc.With(prometheus.Labels{"event": event, "result": result})
}

// Config holds the MQTT forwarder configuration.
type Config struct {
	Server       string
	Username     string
	Password     string
	QOS          uint8
	CleanSession bool
	ClientID     string
	// TopicTemplate is executed with .DevEUI and .Event.
	TopicTemplate string
	// DevEUI identifies the device in the topic.
	DevEUI string
}

// publisher is the subset of paho.Client used by the Forwarder.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Confirmation is the published form of a modem.ConfirmationEvent.
type Confirmation struct {
	RSSI int `json:"rssi"`
	SNR  int `json:"snr"`
}

// Downlink is the published form of a modem.DownlinkEvent.
type Downlink struct {
	Port int    `json:"fPort"`
	RSSI int    `json:"rssi"`
	SNR  int    `json:"snr"`
	Data []byte `json:"data"`
}

type message struct {
	event   string
	payload interface{}
}

// Forwarder publishes events handed to it by the modem handlers. Handlers
// only enqueue, publishing happens on a separate goroutine so the modem Loop
// never waits for the broker.
type Forwarder struct {
	config Config
	conn   publisher
	topic  *template.Template

	mu         sync.Mutex
	closed     bool
	queue      chan message
	wg         sync.WaitGroup
	once       sync.Once
	disconnect func()
}

// New connects to the broker and returns a running Forwarder.
func New(c Config) (*Forwarder, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(c.Server)
	opts.SetUsername(c.Username)
	opts.SetPassword(c.Password)
	opts.SetCleanSession(c.CleanSession)
	opts.SetClientID(c.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.WithError(err).Error("forwarder: mqtt connection lost")
	})

	log.WithField("server", c.Server).Info("forwarder: connecting to mqtt broker")
	conn := paho.NewClient(opts)
	if token := conn.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrap(token.Error(), "forwarder: connect to mqtt broker error")
	}

	f, err := newForwarder(conn, c)
	if err != nil {
		conn.Disconnect(250)
		return nil, err
	}
	f.disconnect = func() { conn.Disconnect(250) }
	return f, nil
}

func newForwarder(conn publisher, c Config) (*Forwarder, error) {
	t, err := template.New("topic").Parse(c.TopicTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "forwarder: parse topic template error")
	}

	f := &Forwarder{
		config: c,
		conn:   conn,
		topic:  t,
		queue:  make(chan message, queueSize),
	}

	f.wg.Add(1)
	go f.run()

	return f, nil
}

// HandleConfirmation is a modem.ConfirmationHandler.
func (f *Forwarder) HandleConfirmation(e modem.ConfirmationEvent) {
	f.enqueue(eventConfirmation, Confirmation{RSSI: e.RSSI, SNR: e.SNR})
}

// HandleMessage is a modem.ReceiveHandler.
func (f *Forwarder) HandleMessage(e modem.DownlinkEvent) {
	data, err := e.Bytes()
	if err != nil {
		log.WithError(err).Warning("forwarder: dropping downlink with invalid payload")
		publishCount(eventDownlink, "invalid").Inc()
		return
	}
	f.enqueue(eventDownlink, Downlink{Port: e.Port, RSSI: e.RSSI, SNR: e.SNR, Data: data})
}

func (f *Forwarder) enqueue(event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		log.WithField("event", event).Debug("forwarder: closed, dropping event")
		publishCount(event, "closed").Inc()
		return
	}

	select {
	case f.queue <- message{event: event, payload: payload}:
	default:
		log.WithField("event", event).Warning("forwarder: queue full, dropping event")
		publishCount(event, "dropped").Inc()
	}
}

func (f *Forwarder) run() {
	defer f.wg.Done()

	for m := range f.queue {
		if err := f.publish(m); err != nil {
			log.WithError(err).WithField("event", m.event).Error("forwarder: publish error")
			publishCount(m.event, "error").Inc()
			continue
		}
		publishCount(m.event, "ok").Inc()
	}
}

// Topic returns the topic an event is published on.
func (f *Forwarder) Topic(event string) (string, error) {
	topic := bytes.NewBuffer(nil)
	err := f.topic.Execute(topic, struct {
		DevEUI string
		Event  string
	}{f.config.DevEUI, event})
	if err != nil {
		return "", errors.Wrap(err, "execute topic template error")
	}
	return topic.String(), nil
}

func (f *Forwarder) publish(m message) error {
	topic, err := f.Topic(m.event)
	if err != nil {
		return err
	}

	b, err := json.Marshal(m.payload)
	if err != nil {
		return errors.Wrap(err, "marshal event error")
	}

	log.WithFields(log.Fields{
		"topic": topic,
		"qos":   f.config.QOS,
	}).Debug("forwarder: publishing event")

	token := f.conn.Publish(topic, f.config.QOS, false, b)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

// Close stops accepting events and waits until the queued ones are
// published. Events handed to the Forwarder afterwards are dropped.
func (f *Forwarder) Close() {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.queue)
		f.mu.Unlock()

		f.wg.Wait()
		if f.disconnect != nil {
			f.disconnect()
		}
	})
}
