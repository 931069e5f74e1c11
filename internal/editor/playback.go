package editor

// PlayState is the playback state of the current track.
type PlayState int

const (
	Idle PlayState = iota
	Playing
	Paused
)

func (s PlayState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Playback tracks which single track is current and whether it plays.
// The zero value is idle with no current track.
type Playback struct {
	state PlayState
	track string
}

// Select returns the playback after the user presses play on trackID.
// Pressing the current track toggles between playing and paused; any other
// track becomes current and starts playing.
func (p Playback) Select(trackID string) Playback {
	if p.state != Idle && p.track == trackID {
		if p.state == Playing {
			return Playback{state: Paused, track: trackID}
		}
		return Playback{state: Playing, track: trackID}
	}
	return Playback{state: Playing, track: trackID}
}

// Stop returns idle playback.
func (p Playback) Stop() Playback {
	return Playback{}
}

// State returns the play state.
func (p Playback) State() PlayState {
	return p.state
}

// Current returns the current track, if any.
func (p Playback) Current() (string, bool) {
	return p.track, p.state != Idle
}

// IsPlaying reports whether trackID is the current track and is playing.
func (p Playback) IsPlaying(trackID string) bool {
	return p.state == Playing && p.track == trackID
}
