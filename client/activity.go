package client

import (
	"strings"

	"github.com/google/uuid"
)

type ActivityType int

const (
	Playing   ActivityType = 0
	Listening ActivityType = 2
	Watching  ActivityType = 3
	Competing ActivityType = 5
)

// maxButtons is the most buttons Discord renders on a presence card.
const maxButtons = 2

type Button struct {
	Label string `json:"label"`
	Url   string `json:"url"`
}

type Party struct {
	ID   string `json:"id,omitempty"`
	Size []int  `json:"size,omitempty"` // [current, max]
}

type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

type Activity struct {
	Type       ActivityType      `json:"type,omitempty"`
	State      string            `json:"state,omitempty"`
	Details    string            `json:"details,omitempty"`
	Timestamps *Timestamps       `json:"timestamps,omitempty"`
	Assets     *Assets           `json:"assets,omitempty"`
	Party      *Party            `json:"party,omitempty"`
	Secrets    map[string]string `json:"secrets,omitempty"`
	Buttons    []Button          `json:"buttons,omitempty"`
}

func (a Activity) IsEmpty() bool {
	return a.State == "" &&
		a.Details == "" &&
		a.Timestamps == nil &&
		a.Assets == nil &&
		a.Party == nil &&
		len(a.Secrets) == 0 &&
		len(a.Buttons) == 0
}

// payload renders the activity in the shape SET_ACTIVITY expects, dropping
// fields Discord would reject.
func (a Activity) payload() map[string]any {
	out := map[string]any{
		"type": int(a.Type),
	}
	if a.State != "" {
		out["state"] = a.State
	}
	if a.Details != "" {
		out["details"] = a.Details
	}
	if a.Timestamps != nil && (a.Timestamps.Start != 0 || a.Timestamps.End != 0) {
		out["timestamps"] = a.Timestamps
	}
	if a.Party != nil && len(a.Party.Size) == 2 {
		party := *a.Party
		if party.ID == "" {
			party.ID = uuid.NewString()
		}
		out["party"] = party
	}
	if len(a.Secrets) > 0 {
		out["secrets"] = a.Secrets
	}
	if buttons := validButtons(a.Buttons); len(buttons) > 0 {
		out["buttons"] = buttons
	}
	if a.Assets != nil {
		assets := map[string]any{}
		if a.Assets.LargeImage != "" {
			assets["large_image"] = a.Assets.LargeImage
			assets["large_text"] = orDefault(a.Assets.LargeText, a.State)
		}
		if a.Assets.SmallImage != "" {
			assets["small_image"] = a.Assets.SmallImage
			assets["small_text"] = orDefault(a.Assets.SmallText, a.State)
		}
		if len(assets) > 0 {
			out["assets"] = assets
		}
	}
	return out
}

func validButtons(in []Button) []Button {
	var out []Button
	for _, b := range in {
		label := strings.TrimSpace(b.Label)
		url := strings.TrimSpace(b.Url)
		if label == "" || url == "" || !(strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")) {
			continue
		}
		out = append(out, Button{Label: label, Url: url})
		if len(out) == maxButtons {
			break
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
