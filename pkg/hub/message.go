// Package hub fans camera frames out to websocket clients using a
// channel-based broadcast loop, one hub per camera.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded status message
	JSONMessage MessageType = iota
	// FrameMessage is one JPEG-encoded frame
	FrameMessage
)

// Message is queued to every client of a hub.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewFrameMessage wraps a JPEG frame.
func NewFrameMessage(jpeg []byte) Message {
	return Message{Type: FrameMessage, Data: jpeg}
}

// StreamError is sent as JSON when a stream stops on a device failure.
type StreamError struct {
	Camera uint8  `json:"camera"`
	Error  string `json:"error"`
}
