package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf16"
)

const (
	// NicknameUnits is the fixed nickname width on the wire:
	// 32 UTF-16 code units, null-padded.
	NicknameUnits = 32

	// MaxTextUnits caps the declared length of a length-prefixed text
	// field (UTF-16 code units including the NUL terminator) so that the
	// largest SEND_MSG payload still fits in MaxPayloadSize.
	MaxTextUnits = (MaxPayloadSize - 76) / 2
)

var (
	ErrNicknameTooLong = errors.New("nickname exceeds 32 UTF-16 code units")
	ErrTextTooLong     = errors.New("message text exceeds maximum length")
	ErrOddTextLength   = errors.New("UTF-16 text has odd byte length")
)

// WriteUint8 writes a single byte to the writer.
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// WriteUint32 writes a little-endian uint32 to the writer.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint8 reads a single byte from the reader.
func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint32 reads a little-endian uint32 from the reader.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteNickname writes s as exactly NicknameUnits UTF-16LE code units,
// null-padded. Nicknames longer than the fixed width are rejected, never
// silently truncated.
func WriteNickname(w io.Writer, s string) error {
	units := utf16.Encode([]rune(s))
	if len(units) > NicknameUnits {
		return ErrNicknameTooLong
	}
	buf := make([]byte, NicknameUnits*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	_, err := w.Write(buf)
	return err
}

// ReadNickname reads a fixed-width null-padded UTF-16LE nickname.
func ReadNickname(r io.Reader) (string, error) {
	buf := make([]byte, NicknameUnits*2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	units := make([]uint16, 0, NicknameUnits)
	for i := 0; i < NicknameUnits; i++ {
		u := binary.LittleEndian.Uint16(buf[i*2:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// WriteText writes a length-prefixed UTF-16LE string: a uint32 count of
// code units including a NUL terminator, followed by that many units.
func WriteText(w io.Writer, s string) error {
	units := utf16.Encode([]rune(s))
	if len(units)+1 > MaxTextUnits {
		return ErrTextTooLong
	}
	if err := WriteUint32(w, uint32(len(units)+1)); err != nil {
		return err
	}
	buf := make([]byte, (len(units)+1)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	_, err := w.Write(buf)
	return err
}

// ReadText reads a length-prefixed UTF-16LE string, stripping the NUL
// terminator included in the declared length.
func ReadText(r io.Reader) (string, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return "", err
	}
	if n > MaxTextUnits {
		return "", ErrTextTooLong
	}
	buf := make([]byte, int(n)*2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	units := make([]uint16, 0, n)
	for i := 0; i < int(n); i++ {
		u := binary.LittleEndian.Uint16(buf[i*2:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// writeRawText writes s as bare UTF-16LE units with no length prefix and no
// terminator. Used for the trailing text of an ERROR payload, which runs to
// the end of the frame.
func writeRawText(w io.Writer, s string) error {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	_, err := w.Write(buf)
	return err
}

// decodeRawText decodes bare UTF-16LE units occupying the whole slice.
func decodeRawText(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", ErrOddTextLength
	}
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}
