package midi

import (
	"fmt"

	"github.com/leandrodaf/framemidi/internal/logger"
	"github.com/leandrodaf/framemidi/internal/scheduler"
	"github.com/leandrodaf/framemidi/sdk/contracts"
)

// applyDefaultOptions sets default values for EngineOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify EngineOptions.
//
// Returns:
//   - contracts.EngineOptions: A structure containing the finalized options with defaults applied.
//   - error: An error if the timing is invalid or the platform transport cannot be opened.
func applyDefaultOptions(opts ...contracts.Option) (contracts.EngineOptions, error) {
	options := &contracts.EngineOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	options.Logger.SetLevel(options.LogLevel) // zero value is InfoLevel

	if options.Timing == nil {
		timing := contracts.DefaultTiming
		options.Timing = &timing
	}
	if err := validateTiming(*options.Timing); err != nil {
		return contracts.EngineOptions{}, err
	}

	if options.VirtualPortConfig == nil {
		options.VirtualPortConfig = &contracts.VirtualPortConfig{
			ClientName: "framemidi",
			SourceName: "framemidi source",
		}
	}

	if options.Scheduler == nil {
		options.Scheduler = scheduler.NewTimer()
	}

	if options.Transport == nil {
		t, err := NewPlatformTransport(options.Logger, *options.VirtualPortConfig)
		if err != nil {
			return contracts.EngineOptions{}, fmt.Errorf("open platform transport: %w", err)
		}
		options.Transport = t
	}

	return *options, nil
}
