package parameter

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate    = 44100
	AudioChannels      = 2
	AudioBitDepth      = 16
	AudioBytesPerFrame = AudioChannels * (AudioBitDepth / 8) // 4 bytes

	// AudioResampleQuality is passed to beep.Resample when a decoded asset
	// does not match the context rate
	AudioResampleQuality = 4
)

// Audio Output Timing
const (
	// AudioBufferDuration determines output latency and pump tick rate
	AudioBufferDuration = 20 * time.Millisecond

	// AudioSpeakerBuffer is the device buffer handed to speaker.Init
	AudioSpeakerBuffer = 40 * time.Millisecond

	// AudioDrainTimeout for pipe cleanup on stop
	AudioDrainTimeout = 100 * time.Millisecond
)

// Metronome Scheduling
const (
	// MetronomeScheduleAhead is the horizon (seconds of audio clock) within
	// which clicks are committed to the graph on each pass
	MetronomeScheduleAhead = 0.1

	// MetronomeLookahead is the wall-clock period of the scheduling pass
	MetronomeLookahead = 25 * time.Millisecond

	// MetronomeStartMargin is added to the current audio time for the first beat
	MetronomeStartMargin = 0.1

	// MetronomeDefaultSound is used when start is called without a sound name
	MetronomeDefaultSound = "tick"

	// MetronomeDefaultVolume applies until the first start or volume update
	MetronomeDefaultVolume = 0.5

	// MetronomePackID namespaces metronome clicks in the sound bank
	MetronomePackID = "metronome"

	// MetronomeMinBPM and MetronomeMaxBPM bound interactive tempo changes
	MetronomeMinBPM = 20
	MetronomeMaxBPM = 300
)

// Sound Bank
const (
	// BankLoadConcurrency bounds parallel decodes while loading a pack
	BankLoadConcurrency = 8

	// BankFailureLogInterval throttles repeated decode failure warnings per asset
	BankFailureLogInterval = 5 * time.Second
)

// Event Bus
const (
	// EventBufferSize is the per-subscriber channel capacity; events beyond it are dropped
	EventBufferSize = 64
)

// MIDI Input
const (
	// MidiBaseNote is the note mapped to the first pad (C1, the General MIDI kick)
	MidiBaseNote = 36

	// MidiHitBuffer is the pad hit channel capacity; hits beyond it are dropped
	MidiHitBuffer = 32
)
