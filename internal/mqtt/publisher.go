package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/weather-station/internal/dashboard"
)

// Config holds broker settings.
type Config struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
}

// Publisher broadcasts committed dashboard states to an MQTT broker.
// It implements dashboard.Sink.
type Publisher struct {
	client paho.Client
	prefix string
	log    *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Message is the retained payload published per location.
type Message struct {
	RefreshID string           `json:"refresh_id"`
	Status    dashboard.Status `json:"status"`
	Location  string           `json:"location"`
	Unit      string           `json:"unit"`
	Current   *float64         `json:"current,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
	Today     *DayMessage      `json:"today,omitempty"`
	Hourly    []HourMessage    `json:"hourly"`
}

type DayMessage struct {
	Day     string `json:"day"`
	Average int    `json:"average"`
	High    int    `json:"high"`
	Low     int    `json:"low"`
}

type HourMessage struct {
	Hour        int `json:"hour"`
	Temperature int `json:"temperature"`
}

func NewPublisher(cfg Config, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "mqtt")

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(_ paho.Client) {
		log.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})

	return newPublisher(paho.NewClient(opts), cfg.TopicPrefix, log)
}

func newPublisher(client paho.Client, prefix string, log *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = "weather-station"
	}
	return &Publisher{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// Connect waits for the initial broker connection, honouring ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}
	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

// Topic returns the topic a location's dashboard is published on.
func (p *Publisher) Topic(state dashboard.State) string {
	city := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(state.Location.City), " ", "-"))
	country := strings.ToLower(strings.TrimSpace(state.Location.Country))
	if country == "" {
		return fmt.Sprintf("%s/%s/dashboard", p.prefix, city)
	}
	return fmt.Sprintf("%s/%s-%s/dashboard", p.prefix, city, country)
}

// Publish sends state as a retained message. Loading states are not published.
func (p *Publisher) Publish(_ context.Context, state dashboard.State) error {
	if state.Status == dashboard.StatusLoading {
		return nil
	}
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(NewMessage(state))
	if err != nil {
		return fmt.Errorf("marshal dashboard: %w", err)
	}

	topic := p.Topic(state)
	token := p.client.Publish(topic, 1, true, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish dashboard: %w", err)
	}

	p.log.Debug("published dashboard", "topic", topic, "refresh_id", state.RefreshID)
	return nil
}

// NewMessage flattens a dashboard state into the broadcast payload.
func NewMessage(state dashboard.State) Message {
	msg := Message{
		RefreshID: state.RefreshID,
		Status:    state.Status,
		Location:  state.Location.Key(),
		Unit:      state.Unit.Symbol(),
		Current:   state.Current,
		UpdatedAt: state.UpdatedAt,
		Hourly:    make([]HourMessage, 0, len(state.Hourly)),
	}
	for _, h := range state.Hourly {
		msg.Hourly = append(msg.Hourly, HourMessage{Hour: h.Hour, Temperature: h.Temperature})
	}
	if len(state.Daily) > 0 {
		d := state.Daily[0]
		msg.Today = &DayMessage{Day: d.Day, Average: d.AverageTemperature, High: d.High, Low: d.Low}
	}
	return msg
}

// Disconnect closes the broker connection. Safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.log.Info("mqtt disconnected")
}
