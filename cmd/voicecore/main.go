// Command voicecore runs the audio path of a voice client against the
// configured devices.
//
// It plays call progress tones through the output device and captures the
// microphone while a call is accepted, logging the input level once per
// -meter interval. With -demo the call responses come from a local loopback
// peer instead of the network:
//
//	voicecore -config voice.yaml -demo
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/voicecore"
	"github.com/opd-ai/voicecore/capture"
	"github.com/opd-ai/voicecore/config"
	"github.com/opd-ai/voicecore/factory"
	"github.com/opd-ai/voicecore/resource"
	"github.com/opd-ai/voicecore/signaling"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	demo := flag.Bool("demo", false, "run a simulated call against a loopback peer")
	callee := flag.String("call", "EGKK_APP", "callsign to call in demo mode")
	ringFor := flag.Duration("ring", 2*time.Second, "ringback time before the demo peer accepts")
	talkFor := flag.Duration("talk", 5*time.Second, "recording time before the demo peer hangs up")
	meterEvery := flag.Duration("meter", time.Second, "input level reporting interval")
	flag.Parse()

	if err := run(*configPath, demoSettings{
		enabled: *demo,
		callee:  *callee,
		ring:    *ringFor,
		talk:    *talkFor,
	}, *meterEvery); err != nil {
		fmt.Fprintf(os.Stderr, "voicecore: %v\n", err)
		os.Exit(1)
	}
}

type demoSettings struct {
	enabled bool
	callee  string
	ring    time.Duration
	talk    time.Duration
}

func run(configPath string, demo demoSettings, meterEvery time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCloser, err := config.ConfigureLogging(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	f := factory.NewEndpointFactory()
	if err := f.UpdateConfig(cfg.DeviceConfig()); err != nil {
		return err
	}

	endpoint, err := f.CreateEndpoint()
	if err != nil {
		return err
	}

	sounds, err := resource.NewCache(cfg.CacheSize)
	if err != nil {
		endpoint.Close()
		return err
	}

	// One sink for the whole run: every accepted call starts a new
	// recording on the same session. The shutdown goroutine closes it.
	sink := capture.NewChannelSink(64)

	options := voicecore.NewOptions()
	options.Callsign = cfg.Callsign
	options.Capture = f.CreateCaptureOptions()
	options.Capture.OnDataAvailable = sink.DataAvailable
	options.Capture.OnRecordingStopped = sink.RecordingStopped
	options.ToneGain = float32(cfg.Tones.Gain)
	setTone(options, signaling.EventRouted, cfg.Tones.Ringback)
	setTone(options, signaling.EventBusy, cfg.Tones.Busy)
	setTone(options, signaling.EventReject, cfg.Tones.Reject)

	client, err := voicecore.New(endpoint, sounds, options)
	if err != nil {
		endpoint.Close()
		return err
	}
	defer client.Kill()

	renderer, err := f.CreateRenderer(options.ToneFormat)
	if err != nil {
		return err
	}
	defer renderer.Close()
	if err := renderer.Play(client.Tone()); err != nil {
		return fmt.Errorf("start tone output: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumeFrames(ctx, sink, client.Session(), meterEvery)
	})

	if demo.enabled {
		g.Go(func() error {
			defer cancel()
			return runDemoCall(ctx, client, demo)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		client.Kill()
		sink.Close()
		return nil
	})

	logrus.WithFields(logrus.Fields{
		"function":   "run",
		"callsign":   cfg.Callsign,
		"simulation": f.IsUsingSimulation(),
		"demo":       demo.enabled,
	}).Info("voicecore running")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func setTone(options *voicecore.Options, ev signaling.CallResponseEvent, path string) {
	if path != "" {
		options.Tones[ev] = path
	}
}

// consumeFrames drains the capture sink until shutdown closes it and logs
// the input level. The meter is created on the first frame, once the session has
// negotiated its format.
func consumeFrames(ctx context.Context, sink *capture.ChannelSink, session *capture.Session, every time.Duration) error {
	var meter *levelMeter

	for frame := range sink.Frames() {
		if meter == nil {
			meter = newLevelMeter(session.Format(), every)
		}
		meter.Add(frame.Data, frame.At)
		if !meter.Due(frame.At) {
			continue
		}
		peak, rms := meter.Flush()
		logrus.WithFields(logrus.Fields{
			"function":  "consumeFrames",
			"seq":       frame.Seq,
			"peak_dbfs": peak,
			"rms_dbfs":  rms,
		}).Info("Input level")
	}

	stats := session.Stats()
	fields := logrus.Fields{
		"function":       "consumeFrames",
		"emissions":      stats.Emissions,
		"bytes":          stats.Bytes,
		"silent_packets": stats.SilentPackets,
		"dropped":        sink.Dropped(),
		"recordings":     sink.Recordings(),
	}
	if err := sink.Err(); err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Warn("Capture finished, last recording faulted")
	} else {
		logrus.WithFields(fields).Info("Capture finished")
	}
	return ctx.Err()
}

// runDemoCall plays both sides of a call: the loopback peer answers the
// request with routed, accept and reject responses encoded on the wire.
func runDemoCall(ctx context.Context, client *voicecore.Client, demo demoSettings) error {
	req, wire, err := client.PlaceCall(demo.callee)
	if err != nil {
		return err
	}

	peer, err := signaling.UnmarshalCallRequest(wire)
	if err != nil {
		return err
	}

	steps := []struct {
		event signaling.CallResponseEvent
		after time.Duration
	}{
		{signaling.EventRouted, 0},
		{signaling.EventAccept, demo.ring},
		{signaling.EventReject, demo.talk},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(step.after):
		}

		reply, err := signaling.MarshalCallResponse(signaling.CallResponse{Request: peer, Event: step.event})
		if err != nil {
			return err
		}
		if err := client.HandleMessage(reply); err != nil {
			return fmt.Errorf("handle %s: %w", step.event, err)
		}

		logrus.WithFields(logrus.Fields{
			"function": "runDemoCall",
			"call_id":  req.ID.String(),
			"event":    step.event.String(),
			"state":    client.Session().State().String(),
		}).Info("Demo peer responded")
	}

	// Let the reject tone play out.
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
	return nil
}
