package bridge

import "encoding/json"

// Frame kinds. A call carries one of the client kinds; every reply carries
// the request's id so concurrent calls on one channel stay correlated.
const (
	KindInvoke = "invoke"
	KindNotify = "notify"
	KindStream = "stream"
	KindCancel = "cancel"

	KindResult = "result"
	KindChunk  = "chunk"
	KindDone   = "done"
	KindError  = "error"
)

// Frame is one JSON line on the wire.
type Frame struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}
