package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/campus-portal/companion/internal/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The companion only listens on a local address.
		return true
	},
}

// WebSocketUpgrade returns a handler that upgrades HTTP connections to WebSocket.
func WebSocketUpgrade(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}

		client := ws.NewClient(hub)
		hub.Register(client)

		go writePump(conn, client)
		go readPump(conn, client, hub)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client commands until the connection drops.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		reply := handleClientMessage(message, client)
		data, err := reply.JSON()
		if err != nil {
			log.Printf("Failed to encode WebSocket reply: %v", err)
			continue
		}
		if !client.Reply(data) {
			log.Printf("Dropped WebSocket reply to slow client")
		}
	}
}

// handleClientMessage applies one client command and returns the reply.
func handleClientMessage(message []byte, client *ws.Client) ws.Message {
	var cmd ws.ClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		return ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: "bad_request", Message: "Invalid command"})
	}

	switch cmd.Type {
	case ws.TypeSubscribe:
		topics := client.Subscribe(cmd.Payload.Topics...)
		return ws.NewMessage(ws.TypeSubscribeAck, ws.SubscribePayload{Topics: topics})
	case ws.TypeUnsubscribe:
		topics := client.Unsubscribe(cmd.Payload.Topics...)
		return ws.NewMessage(ws.TypeSubscribeAck, ws.SubscribePayload{Topics: topics})
	case ws.TypePing:
		return ws.NewMessage(ws.TypePong, nil)
	default:
		return ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:         "unknown_command",
			Message:      "Unknown command",
			OriginalType: string(cmd.Type),
		})
	}
}
