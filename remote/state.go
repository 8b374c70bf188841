package remote

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

type NowPlaying struct {
	ID       string  `json:"id,omitempty"`
	Title    string  `json:"title,omitempty"`
	Artist   string  `json:"artist,omitempty"`
	Album    string  `json:"album,omitempty"`
	ImageURL string  `json:"image,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// State is the surface's mirror of the primary process plus its own
// display preferences.
type State struct {
	Connection ConnectionState
	ShowImage  bool
	IsDark     bool
	NowPlaying *NowPlaying
	Playing    bool
	Volume     int
	Position   float64
}

// Update is a partial state pushed by the primary process; nil fields are
// left untouched.
type Update struct {
	NowPlaying *NowPlaying `json:"song,omitempty"`
	Playing    *bool       `json:"playing,omitempty"`
	Volume     *int        `json:"volume,omitempty"`
	Position   *float64    `json:"position,omitempty"`
}

// Prefs are the preferences a surface persists across runs.
type Prefs struct {
	ShowImage bool `toml:"show_image"`
	Dark      bool `toml:"dark"`
}

func DefaultPrefs() Prefs {
	return Prefs{ShowImage: true}
}

func (s State) prefs() Prefs {
	return Prefs{ShowImage: s.ShowImage, Dark: s.IsDark}
}
