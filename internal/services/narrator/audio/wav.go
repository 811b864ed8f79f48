// Package audio wraps raw PCM speech output in a RIFF/WAVE container.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// SpeechFormat is the PCM layout returned by the speech model.
var SpeechFormat = Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

// MIMEType is the content type of EncodeWAV output.
const MIMEType = "audio/wav"

// Format describes linear PCM samples.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// ErrInvalidFormat is returned for non-positive format fields.
var ErrInvalidFormat = errors.New("invalid pcm format")

// EncodeWAV prefixes pcm with a 44-byte canonical WAV header.
func EncodeWAV(pcm []byte, format Format) ([]byte, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 || format.BitsPerSample <= 0 || format.BitsPerSample%8 != 0 {
		return nil, ErrInvalidFormat
	}
	blockAlign := format.Channels * format.BitsPerSample / 8
	byteRate := format.SampleRate * blockAlign

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	writeUint32(&buf, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	writeUint32(&buf, 16)
	writeUint16(&buf, 1) // linear PCM
	writeUint16(&buf, uint16(format.Channels))
	writeUint32(&buf, uint32(format.SampleRate))
	writeUint32(&buf, uint32(byteRate))
	writeUint16(&buf, uint16(blockAlign))
	writeUint16(&buf, uint16(format.BitsPerSample))
	buf.WriteString("data")
	writeUint32(&buf, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes(), nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
