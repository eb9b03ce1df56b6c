package http

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

type testServer struct {
	*httptest.Server
	service *app.GameService
	hub     *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	hub := NewHub(DefaultHubConfig())
	service := app.NewGameService(app.Dependencies{
		Rooms:     memory.NewRoomRegistry(sequentialCodes()),
		Questions: repo,
		Transport: hub,
		Clock:     clockwork.NewFakeClock(),
	}, app.DefaultSettings())

	server := httptest.NewServer(NewRouter(RouterConfig{}, service, NewWSHandler(service, hub)))
	t.Cleanup(func() {
		service.Close()
		server.Close()
	})
	return &testServer{Server: server, service: service, hub: hub}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketRoundFlow(t *testing.T) {
	srv := newTestServer(t)
	host := srv.dial(t)
	player := srv.dial(t)

	send(t, host, "create_room", nil)
	created := readUntil(t, host, domain.EventRoomCreated)
	code, _ := created["roomCode"].(string)
	if len(code) != 6 {
		t.Fatalf("expected a six digit room code, got %v", created)
	}

	send(t, player, "join", map[string]any{"roomCode": code, "name": "Alice"})
	joined := readUntil(t, player, domain.EventJoined)
	if joined["name"] != "Alice" || joined["playerId"] == "" {
		t.Fatalf("unexpected joined payload %v", joined)
	}
	readUntil(t, host, domain.EventRosterUpdated)
	if n := srv.hub.Members(code); n != 2 {
		t.Fatalf("expected host and player in the room, got %d members", n)
	}

	send(t, host, "start_game", map[string]any{"roomCode": code, "gameMode": "manual"})
	question := readUntil(t, player, domain.EventQuestion)
	if question["total"].(float64) != 2 || question["index"].(float64) != 0 {
		t.Fatalf("unexpected question %v", question)
	}
	if _, leaked := question["correct"]; leaked {
		t.Fatalf("question must not reveal the answer: %v", question)
	}

	send(t, player, "submit_answer", map[string]any{"roomCode": code, "answerIndex": 1})
	progress := readUntil(t, host, domain.EventAnswerProgress)
	if progress["allAnswered"] != true {
		t.Fatalf("expected all answered, got %v", progress)
	}

	send(t, host, "skip_to_results", map[string]any{"roomCode": code})
	result := readUntil(t, player, domain.EventRoundResult)
	results := result["playerResults"].([]any)
	alice := results[0].(map[string]any)
	if alice["isCorrect"] != true || alice["rank"].(float64) != 1 || alice["score"].(float64) != 15 {
		t.Fatalf("unexpected result %v", alice)
	}
}

func TestWebSocketErrors(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t)

	send(t, conn, "join", map[string]any{"roomCode": "000000", "name": "Bob"})
	e := readUntil(t, conn, domain.EventError)
	if e["code"] != "invalid_room" || e["message"] != "Invalid Room Code" {
		t.Fatalf("unexpected error %v", e)
	}

	send(t, conn, "dance", map[string]any{})
	if e := readUntil(t, conn, domain.EventError); e["code"] != "bad_request" {
		t.Fatalf("expected bad_request, got %v", e)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if e := readUntil(t, conn, domain.EventError); e["code"] != "bad_request" {
		t.Fatalf("expected bad_request, got %v", e)
	}

	send(t, conn, "submit_answer", map[string]any{"roomCode": "000000"})
	if e := readUntil(t, conn, domain.EventError); e["code"] != "bad_request" {
		t.Fatalf("expected bad_request for a missing answer, got %v", e)
	}
}

func TestWebSocketCloseMarksPlayerDisconnected(t *testing.T) {
	srv := newTestServer(t)
	host := srv.dial(t)
	player := srv.dial(t)

	send(t, host, "create_room", nil)
	code := readUntil(t, host, domain.EventRoomCreated)["roomCode"].(string)
	send(t, player, "join", map[string]any{"roomCode": code, "name": "Alice"})
	readUntil(t, player, domain.EventJoined)
	readUntil(t, host, domain.EventRosterUpdated)

	_ = player.Close()

	for {
		roster := readUntilRaw(t, host, domain.EventRosterUpdated).([]any)
		if len(roster) == 1 && roster[0].(map[string]any)["connected"] == false {
			break
		}
	}
	if n := srv.hub.Members(code); n != 1 {
		t.Fatalf("closed socket still in the room, got %d members", n)
	}

	// the same name can take its seat back from a new socket
	again := srv.dial(t)
	send(t, again, "player_reconnect", map[string]any{"roomCode": code, "name": "Alice"})
	resumed := readUntil(t, again, domain.EventPlayerResumed)
	if resumed["status"] != string(domain.StatusLobby) {
		t.Fatalf("unexpected resume %v", resumed)
	}
	if n := srv.hub.Members(code); n != 2 {
		t.Fatalf("expected the new socket to join the room, got %d members", n)
	}
}

func TestRoomQRCode(t *testing.T) {
	srv := newTestServer(t)
	host := srv.dial(t)
	send(t, host, "create_room", nil)
	code := readUntil(t, host, domain.EventRoomCreated)["roomCode"].(string)

	resp, err := http.Get(srv.URL + "/rooms/" + code + "/qr")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	missing, err := http.Get(srv.URL + "/rooms/424242/qr")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown room, got %d", missing.StatusCode)
	}
}

func TestHealthzWithCORS(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard CORS, got %q", got)
	}
}

func TestJoinURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://10.0.0.5:8080/rooms/123456/qr", nil)
	if got := JoinURL("", r, "123456"); got != "http://10.0.0.5:8080/?room=123456" {
		t.Fatalf("unexpected url %q", got)
	}
	r.Header.Set("X-Forwarded-Proto", "https")
	if got := JoinURL("", r, "123456"); !strings.HasPrefix(got, "https://") {
		t.Fatalf("expected forwarded scheme, got %q", got)
	}
	if got := JoinURL("https://quiz.example.com/", r, "123456"); got != "https://quiz.example.com/?room=123456" {
		t.Fatalf("unexpected url %q", got)
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	payload, _ := readUntilRaw(t, conn, expect).(map[string]any)
	return payload
}

// readUntilRaw skips other events (ticks, roster refreshes) until one of type expect arrives.
func readUntilRaw(t *testing.T, conn *websocket.Conn, expect string) any {
	t.Helper()
	for {
		var msg struct {
			Type    string `json:"type"`
			Payload any    `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Payload
		}
	}
}

func sequentialCodes() app.CodeGenerator {
	var mu sync.Mutex
	next := 100000
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return strconv.Itoa(next)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "2 + 2 = ?", Options: []string{"3", "4", "5", "6"}, Correct: 1},
		{ID: 2, Text: "Largest planet?", Options: []string{"Mars", "Venus", "Jupiter", "Earth"}, Correct: 2},
	}
}
