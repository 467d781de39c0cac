package contracts

// TimingConfig holds the process-wide timing settings of the engine.
type TimingConfig struct {
	DurationUnitMs float64 // Length of one duration unit, strictly positive.
	NoteOnDelayMs  float64 // Gap between a forced note off and its deferred note on, zero or more.
}

// DefaultTiming is one duration unit per 60 Hz frame and no note-on delay.
var DefaultTiming = TimingConfig{DurationUnitMs: 1000.0 / 60.0, NoteOnDelayMs: 0}

// EngineOptions defines the configuration options for the engine.
type EngineOptions struct {
	Logger            Logger             // Logger for lifecycle, flush and transport messages.
	LogLevel          LogLevel           // Level of logging to use.
	Timing            *TimingConfig      // Initial timing; DefaultTiming when nil.
	Transport         Transport          // Destination of encoded messages; the platform transport when nil.
	Scheduler         Scheduler          // Runs deferred actions; a wall-clock scheduler when nil.
	OnTransmitError   func(error)        // Receives transport failures, which are never retried.
	VirtualPortConfig *VirtualPortConfig // Naming of the platform transport.
}

// Option is a function that modifies EngineOptions.
type Option func(*EngineOptions)

// WithLogger sets the logger for the engine.
func WithLogger(l Logger) Option {
	return func(opts *EngineOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the engine.
func WithLogLevel(level LogLevel) Option {
	return func(opts *EngineOptions) {
		opts.LogLevel = level
	}
}

// WithTiming sets the initial timing configuration.
func WithTiming(timing TimingConfig) Option {
	return func(opts *EngineOptions) {
		opts.Timing = &timing
	}
}

// WithTransport sets where encoded messages are sent.
func WithTransport(t Transport) Option {
	return func(opts *EngineOptions) {
		opts.Transport = t
	}
}

// WithScheduler sets the scheduler used for delayed note-ons and note expiry.
func WithScheduler(s Scheduler) Option {
	return func(opts *EngineOptions) {
		opts.Scheduler = s
	}
}

// WithTransmitErrorHandler sets a callback for transport failures.
// It runs on the goroutine that attempted the transmission: the one calling
// Flush, or a scheduler goroutine for delayed note-ons and expiries. It is
// called after the engine's note state is unlocked, so it may query the engine.
func WithTransmitErrorHandler(fn func(error)) Option {
	return func(opts *EngineOptions) {
		opts.OnTransmitError = fn
	}
}

// WithVirtualPortConfig sets the naming used by the platform transport.
func WithVirtualPortConfig(config VirtualPortConfig) Option {
	return func(opts *EngineOptions) {
		opts.VirtualPortConfig = &config
	}
}
