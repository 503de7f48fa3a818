//go:build ignore

// Demo client: creates a session, subscribes to its event stream and drives
// the count step so a status event arrives.
//
//	go run scripts/ws_client.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	resp, err := http.Post(base+"/v1/sessions", "application/json", nil)
	if err != nil {
		log.Fatal(err)
	}
	var sess struct {
		ID string `json:"id"`
	}
	err = json.NewDecoder(resp.Body).Decode(&sess)
	_ = resp.Body.Close()
	if err != nil || sess.ID == "" {
		log.Fatalf("create session: %v", err)
	}
	log.Printf("session %s", sess.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/sessions/" + sess.ID + "/events"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	go func() {
		time.Sleep(200 * time.Millisecond)
		body := bytes.NewReader([]byte(`{"count": 3}`))
		r, err := http.Post(base+"/v1/sessions/"+sess.ID+"/count", "application/json", body)
		if err != nil {
			log.Printf("count: %v", err)
			return
		}
		_ = r.Body.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 2; i++ {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Fatal(err)
		}
		log.Printf("%s: %s", msg.Type, msg.Payload)
	}
}
