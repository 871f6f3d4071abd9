package peerlink

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tinytelemetry/mcbroken/internal/model"
)

// Peer Link Frame Reference
//
// One peer at a time talks to the bridge over a websocket. Every websocket
// text message carries exactly one JSON object.
//
//   Direction   Frame                                               Notes
//   ─────────   ─────────────────────────────────────────────────   ────────────────────────────────
//   bridge→peer {"seq":N,"message":{"message_kind":"ready"}}        once per connection
//   bridge→peer {"seq":N,"message":{"message_kind":"data",...}}     one per record, ack-gated
//   bridge→peer {"seq":N,"message":{"message_kind":"error",...}}    ends a session
//   peer→bridge {"message_kind":"ack","seq":N}                      N delivered
//   peer→bridge {"message_kind":"nack","seq":N}                     N could not be stored
//   peer→bridge {"message_kind":"load_mcdata_by_loc","id":I}        start nearby session I
//   peer→bridge {"message_kind":"load_mcdata_by_saved","id":I}      start saved session I
//   peer→bridge {"message_kind":"shut_up","id":I}                   cancel
//   peer→bridge {"id":I}                                            bare id, treated as cancel
//
// At most one bridge→peer frame is unacknowledged at any time.

// OutboundFrame wraps a message with the sequence number the peer acks.
type OutboundFrame struct {
	Seq     uint64          `json:"seq"`
	Message json.RawMessage `json:"message"`
}

// InboundFrame is anything the peer sends.
type InboundFrame struct {
	Kind model.MessageKind `json:"message_kind,omitempty"`
	ID   *int              `json:"id,omitempty"`
	Seq  uint64            `json:"seq,omitempty"`
}

// Delivery is a decoded outbound frame as seen by the peer.
type Delivery struct {
	Seq   uint64
	Kind  model.MessageKind
	Data  *model.DataRecord
	Error *model.ErrorMessage
}

// Transport errors returned by Link.Send.
var (
	ErrNoPeer     = errors.New("peerlink: no peer connected")
	ErrPeerGone   = errors.New("peerlink: peer disconnected")
	ErrNack       = errors.New("peerlink: peer rejected message")
	ErrAckTimeout = errors.New("peerlink: timed out waiting for ack")
	ErrClosed     = errors.New("peerlink: link closed")
)

// ProtocolError reports a frame the receiving side could not interpret.
type ProtocolError struct {
	Frame string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("peerlink: bad frame %q: %v", e.Frame, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func encodeFrame(seq uint64, msg model.Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("peerlink: marshal message: %w", err)
	}
	return json.Marshal(OutboundFrame{Seq: seq, Message: payload})
}

func decodeDelivery(data []byte) (Delivery, error) {
	var frame OutboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Delivery{}, &ProtocolError{Frame: string(data), Err: err}
	}
	var head struct {
		Kind model.MessageKind `json:"message_kind"`
	}
	if err := json.Unmarshal(frame.Message, &head); err != nil {
		return Delivery{}, &ProtocolError{Frame: string(data), Err: err}
	}

	d := Delivery{Seq: frame.Seq, Kind: head.Kind}
	switch head.Kind {
	case model.KindReady:
	case model.KindData:
		d.Data = &model.DataRecord{}
		if err := json.Unmarshal(frame.Message, d.Data); err != nil {
			return Delivery{}, &ProtocolError{Frame: string(data), Err: err}
		}
	case model.KindError:
		d.Error = &model.ErrorMessage{}
		if err := json.Unmarshal(frame.Message, d.Error); err != nil {
			return Delivery{}, &ProtocolError{Frame: string(data), Err: err}
		}
	default:
		return Delivery{}, &ProtocolError{Frame: string(data), Err: fmt.Errorf("unknown message kind %q", head.Kind)}
	}
	return d, nil
}

// commandFromFrame maps a non-ack inbound frame to a session command.
// A frame with an id but no recognised kind cancels, matching the peer's
// habit of sending a bare id when it abandons a request.
func commandFromFrame(f InboundFrame) (model.Command, error) {
	if f.ID == nil {
		return model.Command{}, fmt.Errorf("command %q without id", f.Kind)
	}
	switch f.Kind {
	case model.KindLoadByLocation, model.KindLoadBySaved, model.KindShutUp:
		return model.Command{Kind: f.Kind, ID: *f.ID}, nil
	default:
		return model.Command{Kind: model.KindShutUp, ID: *f.ID}, nil
	}
}
