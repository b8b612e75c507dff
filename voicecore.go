package voicecore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/voicecore/capture"
	"github.com/opd-ai/voicecore/format"
	"github.com/opd-ai/voicecore/interfaces"
	"github.com/opd-ai/voicecore/playback"
	"github.com/opd-ai/voicecore/resource"
	"github.com/opd-ai/voicecore/signaling"
	"github.com/sirupsen/logrus"
)

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Client errors.
var (
	// ErrKilled indicates use of a client after Kill.
	ErrKilled = errors.New("client killed")

	// ErrCallMismatch indicates a response for a call other than the one
	// placed by this client.
	ErrCallMismatch = errors.New("response does not match the active call")
)

// Options contains configuration options for creating a Client.
type Options struct {
	// Callsign identifies this client in call requests.
	Callsign string

	// Capture configures the microphone session. Its callbacks are passed
	// through unchanged.
	Capture capture.Options

	// Tones maps call events to sound keys in the cache. EventRouted is the
	// ringback tone, EventBusy the busy tone and EventReject the reject
	// tone, which EventNoRoute also uses unless it has its own entry.
	Tones map[signaling.CallResponseEvent]string

	// ToneGain scales every tone.
	ToneGain float32

	// ToneFormat is the format of the tone output stream. Tones in any
	// other format are not played.
	ToneFormat format.AudioFormat

	// TimeProvider stamps call requests. Nil means the wall clock.
	TimeProvider TimeProvider
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{
		Capture:    capture.DefaultOptions(),
		Tones:      make(map[signaling.CallResponseEvent]string),
		ToneGain:   1,
		ToneFormat: format.Float32(48000, 1),
	}
}

// Client ties call signaling to audio: it plays call progress tones and
// starts or stops microphone capture as responses arrive.
//
// Tone returns the provider the output driver should pull from for the
// lifetime of the client. Control methods may be called from any goroutine.
type Client struct {
	mu sync.Mutex

	callsign     string
	tones        map[signaling.CallResponseEvent]string
	toneGain     float32
	timeProvider TimeProvider

	session *capture.Session
	sounds  *resource.Cache
	pool    *playback.Pool
	tone    *playback.Switch

	call      *signaling.CallRequest
	lastEvent signaling.CallResponseEvent
	killed    bool
}

// New creates a Client capturing from endpoint and loading tones from
// sounds. The endpoint is owned by the client and released by Kill.
func New(endpoint interfaces.IEndpoint, sounds *resource.Cache, options *Options) (*Client, error) {
	if options == nil {
		options = NewOptions()
	}
	if sounds == nil {
		return nil, errors.New("sound cache is required")
	}
	if err := options.ToneFormat.Validate(); err != nil {
		return nil, fmt.Errorf("tone format: %w", err)
	}

	session, err := capture.New(endpoint, options.Capture)
	if err != nil {
		return nil, err
	}

	tp := options.TimeProvider
	if tp == nil {
		tp = DefaultTimeProvider{}
	}

	tones := make(map[signaling.CallResponseEvent]string, len(options.Tones))
	for ev, key := range options.Tones {
		tones[ev] = key
	}

	pool := playback.NewPool()
	c := &Client{
		callsign:     options.Callsign,
		tones:        tones,
		toneGain:     max(0, options.ToneGain),
		timeProvider: tp,
		session:      session,
		sounds:       sounds,
		pool:         pool,
		tone:         playback.NewSwitch(options.ToneFormat, pool),
	}

	logrus.WithFields(logrus.Fields{
		"function":    "voicecore.New",
		"callsign":    c.callsign,
		"session_id":  session.ID().String(),
		"tone_format": options.ToneFormat.String(),
		"tones":       len(tones),
	}).Info("Client created")

	return c, nil
}

// Session returns the capture session.
func (c *Client) Session() *capture.Session { return c.session }

// Tone returns the call progress tone stream. It produces silence while no
// tone is playing and never runs dry.
func (c *Client) Tone() playback.SampleProvider { return c.tone }

// LastEvent returns the most recent call response event handled.
func (c *Client) LastEvent() signaling.CallResponseEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEvent
}

// ActiveCall returns the call placed by PlaceCall that has not ended yet.
func (c *Client) ActiveCall() (signaling.CallRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.call == nil {
		return signaling.CallRequest{}, false
	}
	return *c.call, true
}

// PlaceCall creates a call request to callsign and returns it together with
// its wire encoding. Responses to other calls are rejected until this call
// ends.
func (c *Client) PlaceCall(to string) (signaling.CallRequest, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killed {
		return signaling.CallRequest{}, nil, ErrKilled
	}

	req := signaling.NewCallRequest(c.callsign, to)
	req.RequestedAt = c.timeProvider.Now().UTC()
	data, err := signaling.MarshalCallRequest(req)
	if err != nil {
		return signaling.CallRequest{}, nil, err
	}
	c.call = &req

	logrus.WithFields(logrus.Fields{
		"function": "Client.PlaceCall",
		"call_id":  req.ID.String(),
		"from":     req.FromCallsign,
		"to":       req.ToCallsign,
	}).Info("Placing call")

	return req, data, nil
}

// HandleMessage decodes a call response and handles it.
func (c *Client) HandleMessage(data []byte) error {
	resp, err := signaling.UnmarshalCallResponse(data)
	if err != nil {
		return err
	}
	return c.HandleCallResponse(resp)
}

// HandleCallResponse reacts to a call response event:
//
//   - EventRouted loops the ringback tone.
//   - EventBusy loops the busy tone and ends the call.
//   - EventAccept stops the tone and starts recording.
//   - EventReject and EventNoRoute stop recording and play the reject tone
//     once, ending the call.
//
// A tone that cannot be loaded is logged and replaced by silence; it does
// not fail the call transition.
func (c *Client) HandleCallResponse(resp signaling.CallResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killed {
		return ErrKilled
	}
	if !resp.Event.Valid() {
		return fmt.Errorf("%w: %d", signaling.ErrUnknownEvent, int(resp.Event))
	}
	if c.call != nil && resp.Request.ID != c.call.ID {
		logrus.WithFields(logrus.Fields{
			"function":    "Client.HandleCallResponse",
			"call_id":     c.call.ID.String(),
			"response_id": resp.Request.ID.String(),
			"event":       resp.Event.String(),
		}).Warn("Ignoring response for another call")
		return ErrCallMismatch
	}

	logrus.WithFields(logrus.Fields{
		"function": "Client.HandleCallResponse",
		"call_id":  resp.Request.ID.String(),
		"event":    resp.Event.String(),
		"previous": c.lastEvent.String(),
	}).Info("Handling call response")

	c.lastEvent = resp.Event

	switch resp.Event {
	case signaling.EventRouted:
		c.playTone(signaling.EventRouted, true)

	case signaling.EventBusy:
		c.playTone(signaling.EventBusy, true)
		c.call = nil

	case signaling.EventAccept:
		c.stopTone()
		if err := c.session.StartRecording(); err != nil {
			if !errors.Is(err, capture.ErrInvalidState) {
				return fmt.Errorf("start recording: %w", err)
			}
			logrus.WithFields(logrus.Fields{
				"function":   "Client.HandleCallResponse",
				"session_id": c.session.ID().String(),
			}).Debug("Recording already running")
		}

	case signaling.EventReject, signaling.EventNoRoute:
		c.session.StopRecording()
		c.playTone(resp.Event, false)
		c.call = nil
	}

	return nil
}

// Hangup ends the current call locally: the tone stops and recording is
// asked to stop.
func (c *Client) Hangup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTone()
	c.session.StopRecording()
	c.call = nil

	logrus.WithFields(logrus.Fields{
		"function": "Client.Hangup",
	}).Info("Call ended locally")
}

// Kill stops capture, releases the endpoint and silences the tone stream.
// It is safe to call more than once.
func (c *Client) Kill() {
	c.mu.Lock()
	if c.killed {
		c.mu.Unlock()
		return
	}
	c.killed = true
	c.stopTone()
	c.call = nil
	c.mu.Unlock()

	if err := c.session.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.Kill",
			"error":    err.Error(),
		}).Warn("Failed to close capture session")
	}
}

// toneKey returns the cache key of the tone for ev. Called with mu held.
func (c *Client) toneKey(ev signaling.CallResponseEvent) string {
	if key, ok := c.tones[ev]; ok {
		return key
	}
	if ev == signaling.EventNoRoute {
		return c.tones[signaling.EventReject]
	}
	return ""
}

// playTone switches the output to the tone for ev. Called with mu held.
func (c *Client) playTone(ev signaling.CallResponseEvent, looping bool) {
	key := c.toneKey(ev)
	if key == "" {
		c.stopTone()
		return
	}

	snd, err := c.sounds.Get(key)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.playTone",
			"event":    ev.String(),
			"tone":     key,
			"error":    err.Error(),
		}).Warn("Failed to load tone, playing silence")
		c.stopTone()
		return
	}

	r := c.pool.Acquire(snd, c.toneGain, looping)
	if err := c.tone.Set(r); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.playTone",
			"event":    ev.String(),
			"tone":     key,
			"error":    err.Error(),
		}).Warn("Tone format does not match output, playing silence")
		c.pool.Release(r)
		c.stopTone()
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Client.playTone",
		"event":    ev.String(),
		"tone":     key,
		"looping":  looping,
	}).Debug("Tone selected")
}

// stopTone selects silence. Called with mu held.
func (c *Client) stopTone() {
	_ = c.tone.Set(nil)
}
