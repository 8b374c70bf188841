package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ffx64/presence-bridge/internal/codec"
)

const headerSize = 8

func EncodeFrameOp(op OpCode, payload any) ([]byte, error) {
	j, err := codec.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if len(j) > MaxPayload {
		return nil, fmt.Errorf("payload too large: %d bytes", len(j))
	}
	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(j)))
	if err := binary.Write(buf, binary.LittleEndian, int32(op)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(len(j))); err != nil {
		return nil, err
	}
	if _, err := buf.Write(j); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (OpCode, json.RawMessage, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	op := OpCode(binaryLittleEndianToInt32(header[0:4]))
	length := int(binaryLittleEndianToInt32(header[4:8]))
	if length < 0 || length > MaxPayload {
		return 0, nil, fmt.Errorf("invalid payload length %d", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}
	return op, json.RawMessage(payload), nil
}

func binaryLittleEndianToInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}
