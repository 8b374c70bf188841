package ipc

import (
	"fmt"
	"net"
)

const discordPipeSlots = 10

// DialDiscord connects to the first live discord-ipc-N endpoint.
func DialDiscord() (net.Conn, error) {
	var lastErr error
	for i := 0; i < discordPipeSlots; i++ {
		c, err := Dial(fmt.Sprintf("discord-ipc-%d", i))
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no discord ipc endpoint found: %w", lastErr)
}
