package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityIsEmpty(t *testing.T) {
	assert.True(t, Activity{}.IsEmpty())
	assert.True(t, Activity{Type: Listening}.IsEmpty())
	assert.False(t, Activity{State: "Paused"}.IsEmpty())
}

func TestActivityPayload(t *testing.T) {
	act := Activity{
		Type:    Listening,
		State:   "Radiohead",
		Details: "Reckoner",
		Assets:  &Assets{LargeImage: "https://img/cover.jpg", SmallImage: "play"},
		Party:   &Party{Size: []int{3, 10}},
		Buttons: []Button{
			{Label: " ", Url: "https://skip.example"},
			{Label: "Album", Url: "ftp://nope"},
			{Label: "Listen", Url: " https://a.example "},
			{Label: "Artist", Url: "http://b.example"},
			{Label: "Third", Url: "https://c.example"},
		},
		Timestamps: &Timestamps{},
	}

	p := act.payload()
	assert.Equal(t, int(Listening), p["type"])
	assert.Equal(t, "Reckoner", p["details"])
	assert.NotContains(t, p, "timestamps")

	assets := p["assets"].(map[string]any)
	assert.Equal(t, "Radiohead", assets["large_text"])
	assert.Equal(t, "Radiohead", assets["small_text"])

	party := p["party"].(Party)
	assert.NotEmpty(t, party.ID)
	assert.Empty(t, act.Party.ID, "caller's party must not be mutated")

	buttons := p["buttons"].([]Button)
	require.Len(t, buttons, 2)
	assert.Equal(t, Button{Label: "Listen", Url: "https://a.example"}, buttons[0])
	assert.Equal(t, "Artist", buttons[1].Label)
}

func TestActivityPayloadDropsIncompleteParty(t *testing.T) {
	p := Activity{State: "x", Party: &Party{Size: []int{1}}, Assets: &Assets{}}.payload()
	assert.NotContains(t, p, "party")
	assert.NotContains(t, p, "assets")
}
