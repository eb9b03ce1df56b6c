package nats

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return p.err
}

type countingTransport struct {
	broadcasts, sends, joins, leaves, closes int
}

func (c *countingTransport) Broadcast(string, string, any) { c.broadcasts++ }
func (c *countingTransport) Send(string, string, any)      { c.sends++ }
func (c *countingTransport) Join(string, string)           { c.joins++ }
func (c *countingTransport) Leave(string, string)          { c.leaves++ }
func (c *countingTransport) CloseRoom(string)              { c.closes++ }

func TestMirrorPublishesBroadcasts(t *testing.T) {
	next := &countingTransport{}
	pub := &fakePublisher{}
	m := NewMirror(next, pub, "")
	m.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	m.Broadcast("123456", domain.EventTick, domain.Tick{SecondsRemaining: 7})
	m.Send("conn-1", domain.EventJoined, domain.Joined{RoomCode: "123456"})
	m.Join("conn-1", "123456")
	m.Leave("conn-1", "123456")
	m.CloseRoom("123456")

	if next.broadcasts != 1 || next.sends != 1 || next.joins != 1 || next.leaves != 1 || next.closes != 1 {
		t.Fatalf("mirror must forward every call, got %+v", next)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected only the broadcast to be published, got %d", len(pub.msgs))
	}
	if pub.msgs[0].subject != "quiz.rooms.123456.tick" {
		t.Fatalf("unexpected subject %q", pub.msgs[0].subject)
	}

	var env struct {
		Room    string `json:"room"`
		Type    string `json:"type"`
		Payload struct {
			SecondsRemaining int `json:"secondsRemaining"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(pub.msgs[0].data, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Room != "123456" || env.Type != domain.EventTick || env.Payload.SecondsRemaining != 7 {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestMirrorSurvivesPublishErrors(t *testing.T) {
	next := &countingTransport{}
	m := NewMirror(next, &fakePublisher{err: errors.New("nats down")}, "games")

	m.Broadcast("1", domain.EventRoomClosed, domain.RoomClosed{Reason: domain.ReasonShutdown})
	if next.broadcasts != 1 {
		t.Fatalf("broadcast must reach clients even when NATS fails")
	}
	if got := m.Subject("1", "x"); got != "games.1.x" {
		t.Fatalf("unexpected subject %q", got)
	}
}
