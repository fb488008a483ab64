// E2E test: creates a room on a live lobby server, joins it with two
// WebSocket clients and runs the protocol through a full session.
// Usage: go run ./cmd/e2etest -server http://localhost:8080
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var serverURL = flag.String("server", "http://localhost:8080", "lobby server base URL")

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	// --- Create a room ---
	log.Println(">> Creating room...")
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Post(*serverURL+"/c", "", nil)
	if err != nil {
		log.Fatal("create:", err)
	}
	resp.Body.Close()
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/g/") {
		log.Fatalf("create: unexpected redirect %q", loc)
	}
	code := strings.TrimPrefix(loc, "/g/")
	log.Printf("   Room %s created ✓", code)

	wsBase := strings.Replace(*serverURL, "http", "ws", 1) + "/ws/" + code

	// --- Connect Alice (becomes host) ---
	log.Println(">> Connecting Alice...")
	alice := dial(wsBase)
	defer alice.Close()
	send(alice, event{Type: "PlayerJoined", Data: mustJSON(map[string]string{"name": "Alice"})})

	init := expect(alice, "InitData")
	var initPayload struct {
		ID   int    `json:"id"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal(init.Data, &initPayload); err != nil {
		log.Fatal("init decode:", err)
	}
	if initPayload.Role != "Host" || initPayload.ID != 0 {
		log.Fatalf("expected Host id=0, got %s id=%d", initPayload.Role, initPayload.ID)
	}
	expect(alice, "PlayerJoined")
	log.Println("   Alice is host ✓")

	// --- Connect Bob ---
	log.Println(">> Connecting Bob...")
	bob := dial(wsBase)
	defer bob.Close()
	send(bob, event{Type: "PlayerJoined", Data: mustJSON(map[string]string{"name": "Bob"})})
	expect(bob, "InitData")
	expect(bob, "PlayerJoined")
	expect(alice, "PlayerJoined")
	log.Println("   Bob joined ✓")

	// --- Chat ---
	log.Println(">> Bob sends chat...")
	send(bob, event{Type: "ChatMessage", Data: mustJSON(map[string]string{"msg": "hello"})})
	for _, c := range []*websocket.Conn{alice, bob} {
		ev := expect(c, "ChatMessage")
		var chat struct {
			Msg string `json:"msg"`
			ID  int    `json:"id"`
		}
		if err := json.Unmarshal(ev.Data, &chat); err != nil || chat.Msg != "hello" || chat.ID != 1 {
			log.Fatalf("bad chat broadcast: %s", ev.Data)
		}
	}
	log.Println("   Chat attributed to Bob ✓")

	// --- Start the game, then a late joiner is rejected ---
	log.Println(">> Alice starts the game...")
	send(alice, event{Type: "GameStart", Data: json.RawMessage(`{"seed":42}`)})
	expect(alice, "GameStart")
	expect(bob, "GameStart")

	late := dial(wsBase)
	defer late.Close()
	send(late, event{Type: "PlayerJoined", Data: mustJSON(map[string]string{"name": "Carol"})})
	expect(late, "GameInProgress")
	log.Println("   Late joiner rejected ✓")

	fmt.Println("PASS")
}

func dial(url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func send(conn *websocket.Conn, ev event) {
	frame, _ := json.Marshal(ev)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Fatal("send:", err)
	}
}

// expect reads frames until one of the wanted kind arrives.
func expect(conn *websocket.Conn, kind string) event {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("waiting for %s: %v", kind, err)
		}
		var ev event
		if err := json.Unmarshal(frame, &ev); err != nil {
			log.Fatalf("bad frame %q: %v", frame, err)
		}
		if ev.Type == kind {
			return ev
		}
	}
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
