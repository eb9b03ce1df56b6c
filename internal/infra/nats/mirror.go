// Package nats mirrors room broadcasts onto NATS subjects so dashboards and other tools can follow
// games without holding a WebSocket.
package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"live-quiz-service/internal/app"

	natsio "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           natsio.DefaultURL,
		SubjectPrefix: "quiz.rooms",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Connect dials NATS with reconnect handling that only logs.
func Connect(cfg Config) (*natsio.Conn, error) {
	opts := []natsio.Option{
		natsio.Name("live-quiz-service"),
		natsio.MaxReconnects(cfg.MaxReconnects),
		natsio.ReconnectWait(cfg.ReconnectWait),
		natsio.DisconnectErrHandler(func(nc *natsio.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		natsio.ReconnectHandler(func(nc *natsio.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		natsio.ErrorHandler(func(nc *natsio.Conn, sub *natsio.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := natsio.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Publisher is the subset of *nats.Conn the mirror needs. Publish only buffers, it never waits
// for the server.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type envelope struct {
	Room      string    `json:"room"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Mirror is an app.Transport that forwards everything to next and additionally publishes
// room broadcasts to "<prefix>.<room>.<event>". Unicasts stay private.
type Mirror struct {
	next   app.Transport
	pub    Publisher
	prefix string
	now    func() time.Time
}

func NewMirror(next app.Transport, pub Publisher, prefix string) *Mirror {
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &Mirror{next: next, pub: pub, prefix: prefix, now: time.Now}
}

func (m *Mirror) Broadcast(room, event string, payload any) {
	m.next.Broadcast(room, event, payload)

	data, err := json.Marshal(envelope{Room: room, Type: event, Timestamp: m.now().UTC(), Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("room", room).Str("event", event).Msg("marshal mirrored event")
		return
	}
	if err := m.pub.Publish(m.Subject(room, event), data); err != nil {
		log.Warn().Err(err).Str("room", room).Str("event", event).Msg("publish mirrored event")
	}
}

func (m *Mirror) Send(conn, event string, payload any) { m.next.Send(conn, event, payload) }
func (m *Mirror) Join(conn, room string)              { m.next.Join(conn, room) }
func (m *Mirror) Leave(conn, room string)             { m.next.Leave(conn, room) }
func (m *Mirror) CloseRoom(room string)               { m.next.CloseRoom(room) }

// Subject is where broadcasts of event in room are published.
func (m *Mirror) Subject(room, event string) string {
	return fmt.Sprintf("%s.%s.%s", m.prefix, room, event)
}
