package core

import "context"

// SimulationEngine drives the discrete-tick loop: each tick drains the
// pending entity notifications through the masking service so the mask
// is consistent before listeners observe the tick.
type SimulationEngine struct {
	Masking       *MaskingService
	tickListeners []func(int)
}

func NewSimulationEngine(masking *MaskingService) *SimulationEngine {
	return &SimulationEngine{
		Masking:       masking,
		tickListeners: []func(int){},
	}
}

func (se *SimulationEngine) RegisterTickListener(fn func(int)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Step executes a single tick.
func (se *SimulationEngine) Step(ctx context.Context, tick int) error {
	if err := se.Masking.Drain(ctx); err != nil {
		return err
	}
	for _, fn := range se.tickListeners {
		fn(tick)
	}
	return nil
}

// Run executes the given number of ticks, stopping on the first error.
func (se *SimulationEngine) Run(ctx context.Context, ticks int) error {
	for tick := 0; tick < ticks; tick++ {
		if err := se.Step(ctx, tick); err != nil {
			return err
		}
	}
	return nil
}
