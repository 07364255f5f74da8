package scsp

// State is the saved state of the SCSP. The sample deadline and clock ratio
// live in the scheduler state.
type State struct {
	Samples        uint64 `json:"samples"`
	SoundCPUOn     bool   `json:"sound_cpu_on"`
	SoundCPUCycles uint64 `json:"sound_cpu_cycles"`
	TimerAEnabled  bool   `json:"timer_a_enabled"`
	TimerAStart    uint8  `json:"timer_a_start"`
	TimerACounter  uint8  `json:"timer_a_counter"`
}

// SaveState writes the SCSP state.
func (s *SCSP) SaveState(state *State) {
	*state = State{
		Samples:        s.samples,
		SoundCPUOn:     s.soundCPUOn,
		SoundCPUCycles: s.soundCPUCycles,
		TimerAEnabled:  s.timerAEnabled,
		TimerAStart:    s.timerAStart,
		TimerACounter:  s.timerACounter,
	}
}

// ValidateState accepts any state; every field value is loadable.
func (s *SCSP) ValidateState(*State) error {
	return nil
}

// LoadState restores a state.
func (s *SCSP) LoadState(state *State) {
	s.samples = state.Samples
	s.soundCPUOn = state.SoundCPUOn
	s.soundCPUCycles = state.SoundCPUCycles
	s.timerAEnabled = state.TimerAEnabled
	s.timerAStart = state.TimerAStart
	s.timerACounter = state.TimerACounter
}
