package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	credentialFormatVersionCurrent = 1

	maxCookies = 255
)

// Encode serializes a credential into the compact versioned binary layout:
//
//	version | u8 len + deviceID | u16 len + token | u8 count | (u8 len + name, u16 len + value)* | i64 issuedAt
func Encode(c *Credential) ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil credential")
	}

	var buf bytes.Buffer
	buf.WriteByte(credentialFormatVersionCurrent)

	if len(c.DeviceID) > math.MaxUint8 {
		return nil, errors.New("deviceID too long")
	}
	buf.WriteByte(byte(len(c.DeviceID)))
	buf.WriteString(c.DeviceID)

	if err := writeString16(&buf, c.Token); err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	if len(c.Cookies) > maxCookies {
		return nil, errors.New("too many cookies")
	}
	buf.WriteByte(byte(len(c.Cookies)))
	for _, ck := range c.Cookies {
		if len(ck.Name) > math.MaxUint8 {
			return nil, errors.New("cookie name too long")
		}
		buf.WriteByte(byte(len(ck.Name)))
		buf.WriteString(ck.Name)
		if err := writeString16(&buf, ck.Value); err != nil {
			return nil, fmt.Errorf("cookie %s: %w", ck.Name, err)
		}
	}

	var issued int64
	if !c.IssuedAt.IsZero() {
		issued = c.IssuedAt.Unix()
	}
	if err := binary.Write(&buf, binary.BigEndian, issued); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode].
func Decode(data []byte) (*Credential, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != credentialFormatVersionCurrent {
		return nil, fmt.Errorf("unsupported credential schema version %d", version)
	}

	c := &Credential{}

	deviceLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	deviceID := make([]byte, deviceLen)
	if _, err := io.ReadFull(reader, deviceID); err != nil {
		return nil, err
	}
	c.DeviceID = string(deviceID)

	if c.Token, err = readString16(reader); err != nil {
		return nil, err
	}

	count, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		c.Cookies = make([]Cookie, 0, count)
	}
	for i := 0; i < int(count); i++ {
		nameLen, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(reader, name); err != nil {
			return nil, err
		}
		value, err := readString16(reader)
		if err != nil {
			return nil, err
		}
		c.Cookies = append(c.Cookies, Cookie{Name: string(name), Value: value})
	}

	var issued int64
	if err := binary.Read(reader, binary.BigEndian, &issued); err != nil {
		return nil, err
	}
	if issued != 0 {
		c.IssuedAt = time.Unix(issued, 0)
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after credential")
	}

	return c, nil
}

func writeString16(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return errors.New("value too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString16(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", err
	}
	return string(out), nil
}
