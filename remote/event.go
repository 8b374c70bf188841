package remote

import (
	"encoding/json"

	"github.com/ffx64/presence-bridge/internal/codec"
	"github.com/pkg/errors"
)

// Event names understood by the primary process.
const (
	EventProxy     = "proxy"
	EventPlayPause = "playpause"
	EventNext      = "next"
	EventPrevious  = "previous"
	EventSeek      = "seek"
	EventVolume    = "volume"

	// EventState is sent by the primary process, never by a surface.
	EventState = "state"
)

// Event travels as a flat JSON object: {"event": Name, ...Payload}.
type Event struct {
	Name    string
	Payload map[string]any
}

// ProxyImageEvent asks the primary process to serve artwork through its
// own proxy after a direct image load failed.
func ProxyImageEvent() Event {
	return Event{Name: EventProxy}
}

func SeekEvent(seconds float64) Event {
	return Event{Name: EventSeek, Payload: map[string]any{"position": seconds}}
}

func VolumeEvent(volume int) Event {
	return Event{Name: EventVolume, Payload: map[string]any{"volume": volume}}
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Name == "" {
		return nil, errors.New("event without name")
	}
	m := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		m[k] = v
	}
	m["event"] = e.Name
	return json.Marshal(m)
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := codec.Unmarshal(b, &m); err != nil {
		return err
	}
	name := codec.String(m, "event")
	if name == "" {
		return errors.New("event without name")
	}
	delete(m, "event")
	e.Name = name
	e.Payload = nil
	if len(m) > 0 {
		e.Payload = m
	}
	return nil
}
