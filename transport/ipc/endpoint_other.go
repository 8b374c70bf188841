//go:build !windows

package ipc

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
)

// socketDirs lists where local sockets are looked up, in order.
func socketDirs() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if d := os.Getenv(env); d != "" {
			dirs = append(dirs, d)
		}
	}
	return append(dirs, "/tmp")
}

// SocketPath resolves name to a unix socket path. Absolute names are used
// as-is.
func SocketPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(socketDirs()[0], name)
}

// Dial connects to the unix socket called name, trying each socket dir.
func Dial(name string) (net.Conn, error) {
	if filepath.IsAbs(name) {
		return net.Dial("unix", name)
	}
	var firstErr error
	for _, dir := range socketDirs() {
		c, err := net.Dial("unix", filepath.Join(dir, name))
		if err == nil {
			return c, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Listen creates the unix socket called name, removing a stale socket file
// left behind by a crashed process.
func Listen(name string) (net.Listener, error) {
	path := SocketPath(name)
	if c, err := net.Dial("unix", path); err == nil {
		c.Close()
		return nil, &net.OpError{Op: "listen", Net: "unix", Err: errors.New("address already in use")}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", path)
}

// Cleanup removes the socket file. Should be called during shutdown.
func Cleanup(name string) error {
	err := os.Remove(SocketPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// UserScoped returns name unchanged; socket dirs are already per user.
func UserScoped(name string) string {
	return name
}
