package signaling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/voicecore/limits"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// CallResponseEvent is the outcome reported for a call request.
type CallResponseEvent int

const (
	// EventUndefined is the zero value and never sent.
	EventUndefined CallResponseEvent = 0

	// Server responses.

	// EventRouted means the server found the callee and is ringing it.
	EventRouted CallResponseEvent = 1
	// EventNoRoute means the callee is unknown or offline.
	EventNoRoute CallResponseEvent = 2

	// Remote party responses.

	// EventBusy means the callee is in another call.
	EventBusy CallResponseEvent = 3
	// EventAccept means the callee answered.
	EventAccept CallResponseEvent = 4
	// EventReject means the callee declined.
	EventReject CallResponseEvent = 5
)

// String returns the event name.
func (e CallResponseEvent) String() string {
	switch e {
	case EventUndefined:
		return "undefined"
	case EventRouted:
		return "routed"
	case EventNoRoute:
		return "no_route"
	case EventBusy:
		return "busy"
	case EventAccept:
		return "accept"
	case EventReject:
		return "reject"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Valid reports whether e is a known event other than EventUndefined.
func (e CallResponseEvent) Valid() bool {
	return e >= EventRouted && e <= EventReject
}

// Decoding errors.
var (
	// ErrUnknownEvent indicates a response carrying an event outside the
	// defined set.
	ErrUnknownEvent = errors.New("unknown call response event")

	// ErrMalformedMessage indicates a message with the wrong array shape.
	ErrMalformedMessage = errors.New("malformed signaling message")
)

// CallRequest asks the call server to connect two callsigns.
type CallRequest struct {
	ID           uuid.UUID
	FromCallsign string
	ToCallsign   string
	RequestedAt  time.Time
}

// NewCallRequest creates a request with a fresh ID stamped now.
func NewCallRequest(from, to string) CallRequest {
	return CallRequest{
		ID:           uuid.New(),
		FromCallsign: from,
		ToCallsign:   to,
		RequestedAt:  time.Now().UTC(),
	}
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (r *CallRequest) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(4); err != nil {
		return err
	}
	if err := enc.EncodeBytes(r.ID[:]); err != nil {
		return err
	}
	if err := enc.EncodeString(r.FromCallsign); err != nil {
		return err
	}
	if err := enc.EncodeString(r.ToCallsign); err != nil {
		return err
	}
	return enc.EncodeTime(r.RequestedAt)
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (r *CallRequest) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 4 {
		return fmt.Errorf("%w: call request has %d fields", ErrMalformedMessage, n)
	}

	raw, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	from, err := dec.DecodeString()
	if err != nil {
		return err
	}
	to, err := dec.DecodeString()
	if err != nil {
		return err
	}
	at, err := dec.DecodeTime()
	if err != nil {
		return err
	}

	*r = CallRequest{ID: id, FromCallsign: from, ToCallsign: to, RequestedAt: at.UTC()}
	return nil
}

// CallResponse reports the outcome of a CallRequest.
type CallResponse struct {
	Request CallRequest
	Event   CallResponseEvent
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (r *CallResponse) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := r.Request.EncodeMsgpack(enc); err != nil {
		return err
	}
	return enc.EncodeInt(int64(r.Event))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (r *CallResponse) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("%w: call response has %d fields", ErrMalformedMessage, n)
	}

	var req CallRequest
	if err := req.DecodeMsgpack(dec); err != nil {
		return err
	}
	ev, err := dec.DecodeInt()
	if err != nil {
		return err
	}
	event := CallResponseEvent(ev)
	if !event.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownEvent, ev)
	}

	*r = CallResponse{Request: req, Event: event}
	return nil
}

// MarshalCallRequest encodes a request for transmission. Both callsigns must
// be set and within limits.MaxCallsign.
func MarshalCallRequest(req CallRequest) ([]byte, error) {
	if err := limits.ValidateCallsign(req.FromCallsign); err != nil {
		return nil, fmt.Errorf("from callsign: %w", err)
	}
	if err := limits.ValidateCallsign(req.ToCallsign); err != nil {
		return nil, fmt.Errorf("to callsign: %w", err)
	}
	data, err := msgpack.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("marshal call request: %w", err)
	}
	return data, nil
}

// UnmarshalCallRequest decodes a request. Messages over
// limits.MaxSignalingMessage are refused before decoding.
func UnmarshalCallRequest(data []byte) (CallRequest, error) {
	if err := limits.ValidateSignalingMessage(data); err != nil {
		return CallRequest{}, fmt.Errorf("unmarshal call request: %w", err)
	}
	var req CallRequest
	if err := msgpack.Unmarshal(data, &req); err != nil {
		return CallRequest{}, fmt.Errorf("unmarshal call request: %w", err)
	}
	return req, nil
}

// MarshalCallResponse encodes a response for transmission. Responses with
// an invalid event are refused.
func MarshalCallResponse(resp CallResponse) ([]byte, error) {
	if !resp.Event.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, int(resp.Event))
	}
	data, err := msgpack.Marshal(&resp)
	if err != nil {
		return nil, fmt.Errorf("marshal call response: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "MarshalCallResponse",
		"call_id":   resp.Request.ID.String(),
		"event":     resp.Event.String(),
		"data_size": len(data),
	}).Debug("Call response serialized")

	return data, nil
}

// UnmarshalCallResponse decodes a response. Messages over
// limits.MaxSignalingMessage are refused before decoding.
func UnmarshalCallResponse(data []byte) (CallResponse, error) {
	if err := limits.ValidateSignalingMessage(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "UnmarshalCallResponse",
			"data_size": len(data),
			"error":     err.Error(),
		}).Warn("Rejected call response")
		return CallResponse{}, fmt.Errorf("unmarshal call response: %w", err)
	}
	var resp CallResponse
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "UnmarshalCallResponse",
			"data_size": len(data),
			"error":     err.Error(),
		}).Warn("Rejected call response")
		return CallResponse{}, fmt.Errorf("unmarshal call response: %w", err)
	}
	return resp, nil
}
