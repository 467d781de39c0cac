package main

import (
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/framemidi/internal/logger"
	"github.com/leandrodaf/framemidi/internal/scheduler"
	"github.com/leandrodaf/framemidi/sdk/contracts"
	"github.com/leandrodaf/framemidi/sdk/midi"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the driver behind -out port
)

func main() {
	out := flag.String("out", "platform", "transport: platform, port, serial or smf")
	target := flag.String("target", "", "port name, serial device or .mid path")
	baud := flag.Int("baud", 0, "serial baud rate (0 selects 31250)")
	frames := flag.Int("frames", 600, "number of frames to play")
	offline := flag.Bool("offline", false, "render on a virtual clock as fast as possible (use with -out smf)")
	flag.Parse()

	log := logger.NewDevelopmentLogger()

	// Offline rendering drives deferred work and the recorder from one virtual clock.
	var clock *scheduler.Manual
	var recorderOpts []midi.RecorderOption
	if *offline {
		clock = scheduler.NewManual()
		epoch := time.Now()
		recorderOpts = append(recorderOpts, midi.WithRecorderClock(func() time.Time {
			return epoch.Add(clock.Now())
		}))
	}

	transport, err := openTransport(log, *out, *target, *baud, recorderOpts...)
	if err != nil {
		log.Error("Failed to open transport", log.Field().String("out", *out), log.Field().Error("error", err))
		return
	}

	opts := []contracts.Option{
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithTiming(contracts.TimingConfig{DurationUnitMs: 1000.0 / 60, NoteOnDelayMs: 2}),
		contracts.WithTransmitErrorHandler(func(err error) {
			log.Warn("Dropped MIDI message", log.Field().Error("error", err))
		}),
	}
	if transport != nil {
		opts = append(opts, contracts.WithTransport(transport))
	}
	if clock != nil {
		opts = append(opts, contracts.WithScheduler(clock))
	}

	engine, err := midi.NewEngine(opts...)
	if err != nil {
		log.Error("Failed to initialize MIDI engine", log.Field().Error("error", err))
		return
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Error("Failed to close MIDI engine", log.Field().Error("error", err))
		}
	}()

	arpeggio := []int{
		midi.NoteNumber("C3"),
		midi.NoteNumber("E3"),
		midi.NoteNumber("G3"),
		midi.NoteNumber("C4"),
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	const frameTime = time.Second / 60
	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	for frame := 0; frame < *frames; frame++ {
		if clock != nil {
			clock.Advance(frameTime)
		} else {
			select {
			case <-interrupt:
				log.Info("Interrupted; silencing channel")
				silence(log, engine)
				return
			case <-ticker.C:
			}
		}

		// One arpeggio step every 15 frames, each note lasting 12 frames.
		if frame%15 == 0 {
			note := arpeggio[(frame/15)%len(arpeggio)]
			if err := engine.NoteOnWithDuration(note, 96, 12, 1); err != nil {
				log.Error("Failed to queue note", log.Field().Error("error", err))
			}
		}
		// Sweep the pitch wheel and filter cutoff once per second.
		phase := float64(frame%60) / 60
		if err := engine.PitchBend(phase*0.2-0.1, 1); err != nil {
			log.Error("Failed to queue pitch bend", log.Field().Error("error", err))
		}
		if err := engine.ControlChange(74, int(phase*127), 1); err != nil {
			log.Error("Failed to queue control change", log.Field().Error("error", err))
		}

		stats, err := engine.Flush()
		if err != nil {
			log.Error("Flush failed", log.Field().Error("error", err))
			return
		}
		if stats.Dropped > 0 {
			log.Debug("Frame collapsed commands", log.Field().Int("dropped", stats.Dropped))
		}
	}

	silence(log, engine)
	if clock != nil {
		clock.Advance(time.Second)
	}
}

// silence releases every note still sounding on channel 1.
func silence(log contracts.Logger, engine *midi.Engine) {
	if err := engine.AllNotesOff(1); err != nil {
		log.Error("Failed to queue all notes off", log.Field().Error("error", err))
		return
	}
	if _, err := engine.Flush(); err != nil {
		log.Error("Final flush failed", log.Field().Error("error", err))
	}
}

// openTransport returns nil for the platform transport, which NewEngine opens itself.
func openTransport(log contracts.Logger, out, target string, baud int, recorderOpts ...midi.RecorderOption) (contracts.Transport, error) {
	switch out {
	case "port":
		for _, p := range midi.ListOutputPorts() {
			log.Info("MIDI output port", log.Field().Int("index", p.Index), log.Field().String("name", p.Name))
		}
		return midi.OpenPortTransport(log, target)
	case "serial":
		return midi.OpenSerialTransport(log, target, baud)
	case "smf":
		if target == "" {
			target = "framemidi.mid"
		}
		return midi.CreateRecorder(log, target, recorderOpts...)
	default:
		return nil, nil
	}
}
