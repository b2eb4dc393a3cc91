package quic

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeusync/reefrush/internal/core/protocol"
)

const frameHeaderSize = 4

func writeFrame(w io.Writer, payload []byte) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader, limit uint32) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %w", protocol.ErrInvalidFrame, err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", protocol.ErrMessageTooLarge, size, limit)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", protocol.ErrInvalidFrame, err)
	}
	return payload, nil
}
