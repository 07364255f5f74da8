package machine

// The methods below are the operations the system manager performs on the
// machine.

// EnableAndResetSecondaryCPU powers the secondary CPU on from reset.
func (m *Machine) EnableAndResetSecondaryCPU() {
	m.secondary.Reset(true)
	m.secondary.SetDebugTracing(m.interleaver.DebugTracing())
	m.interleaver.EnableSecondary(true)

	m.logger.Debug().Msg("secondary CPU enabled")
}

// DisableSecondaryCPU powers the secondary CPU off.
func (m *Machine) DisableSecondaryCPU() {
	m.interleaver.EnableSecondary(false)

	m.logger.Debug().Msg("secondary CPU disabled")
}

// EnableAndResetSoundCPU powers the sound CPU on.
func (m *Machine) EnableAndResetSoundCPU() {
	m.scsp.SetSoundCPUEnabled(true)
}

// DisableSoundCPU powers the sound CPU off.
func (m *Machine) DisableSoundCPU() {
	m.scsp.SetSoundCPUEnabled(false)
}

// SoftResetSystem resets the machine without clearing the scheduler.
func (m *Machine) SoftResetSystem() {
	m.Reset(false)
}

// ClockChangeSoftReset resets the units that depend on the master clock.
func (m *Machine) ClockChangeSoftReset() {
	m.vdp.Reset(false)
	m.scu.Reset(false)
	m.scsp.Reset(false)
}
