package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	readWait   = 5 * time.Minute
	maxMessage = 64 << 10
)

// ErrMalformed reports a frame that is not a JSON envelope. The connection
// is still usable.
var ErrMalformed = errors.New("malformed message")

// Prepare sets the read limit and deadline of a fresh connection.
func Prepare(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(readWait))
}

// Write sends an event with its data over the WebSocket.
func Write(conn *websocket.Conn, event Event, data interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(Message{Event: event, Data: data})
}

// WriteError sends an error event carrying a code and message.
func WriteError(conn *websocket.Conn, code, msg string) error {
	return Write(conn, EventError, ErrorData{Code: code, Message: msg})
}

// ReadEnvelope reads the next frame and refreshes the read deadline.
func ReadEnvelope(conn *websocket.Conn) (RequestEnvelope, error) {
	var env RequestEnvelope
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}
