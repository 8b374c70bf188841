//go:build windows

package ipc

import (
	"net"
	"os/user"
	"regexp"
	"time"

	"github.com/Microsoft/go-winio"
)

var dialTimeout = 2 * time.Second

func pipePath(name string) string {
	return `\\.\pipe\` + name
}

// Dial opens the named pipe \\.\pipe\<name>.
func Dial(name string) (net.Conn, error) {
	return winio.DialPipe(pipePath(name), &dialTimeout)
}

// Listen creates the named pipe \\.\pipe\<name>.
func Listen(name string) (net.Listener, error) {
	return winio.ListenPipe(pipePath(name), nil)
}

// Cleanup is a no-op; named pipes disappear with their last handle.
func Cleanup(name string) error {
	return nil
}

// UserScoped appends the current user name so two accounts on one machine
// do not share a pipe.
func UserScoped(name string) string {
	if u, err := user.Current(); err == nil {
		name += regexp.MustCompile(`[^a-zA-Z0-9]+`).ReplaceAllString(u.Username, "")
	}
	return name
}
