package main

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/waverider/waverider/dsp"
)

// Binary packet formats for the streaming feeds.
//
// AUDIO PACKET (PCM, 21 byte header):
//
//	Offset | Size | Type    | Description
//	-------|------|---------|----------------------------------------
//	0      | 2    | uint16  | Magic 0x5741 ("WA", waverider audio)
//	2      | 1    | uint8   | Version: 1
//	3      | 1    | uint8   | Format: 0=PCM, 1=Opus, 2=PCM+zstd
//	4      | 8    | uint64  | Wall clock time in milliseconds
//	12     | 4    | uint32  | Sample rate in Hz
//	16     | 1    | uint8   | Channels (always 1)
//	17     | 4    | uint32  | Payload length in bytes
//	21     | N    | []byte  | Audio data (big-endian int16 PCM or Opus)
//
// When format is 2, the payload (not the header) is zstd-compressed
// big-endian int16 PCM.
//
// SPECTRUM PACKET (28 byte header):
//
//	Offset | Size | Type    | Description
//	-------|------|---------|----------------------------------------
//	0      | 2    | uint16  | Magic 0x5753 ("WS", waverider spectrum)
//	2      | 1    | uint8   | Version: 1
//	3      | 1    | uint8   | Format: 0=float32, 2=float32+zstd
//	4      | 4    | uint32  | FFT size (bin count)
//	8      | 4    | uint32  | Sample rate in Hz
//	12     | 8    | uint64  | Center frequency in Hz
//	20     | 8    | uint64  | Wall clock time in milliseconds (offset 20, ends 28)
//	28     | N    | []byte  | Bin magnitudes, little-endian float32 dB

const (
	audioPacketMagic    = 0x5741
	spectrumPacketMagic = 0x5753
	packetVersion       = 1

	formatPCM     = 0
	formatOpus    = 1
	formatZstd    = 2
	formatFloat32 = 0
)

const (
	audioHeaderSize    = 21
	spectrumHeaderSize = 28
)

// PacketEncoder encodes audio and spectrum packets, optionally
// compressing payloads with zstd.
type PacketEncoder struct {
	compress bool
	encoder  *zstd.Encoder
}

// NewPacketEncoder creates an encoder. Compression failures fall back
// to uncompressed packets.
func NewPacketEncoder(compress bool) (*PacketEncoder, error) {
	pe := &PacketEncoder{compress: compress}
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		pe.encoder = enc
	}
	return pe, nil
}

// EncodeAudio packs one audio block as big-endian int16 PCM. Samples
// are assumed to be in [-1, 1]; values outside are clipped.
func (pe *PacketEncoder) EncodeAudio(block dsp.AudioBlock) []byte {
	pcm := make([]byte, len(block.Samples)*2)
	for i, v := range block.Samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.BigEndian.PutUint16(pcm[i*2:], uint16(int16(v*32767)))
	}

	format := uint8(formatPCM)
	if pe.compress && pe.encoder != nil {
		pcm = pe.encoder.EncodeAll(pcm, nil)
		format = formatZstd
	}
	return pe.packAudio(pcm, format, block.Rate)
}

// EncodeOpusAudio wraps an already Opus-encoded payload.
func (pe *PacketEncoder) EncodeOpusAudio(payload []byte, rate int) []byte {
	return pe.packAudio(payload, formatOpus, rate)
}

func (pe *PacketEncoder) packAudio(payload []byte, format uint8, rate int) []byte {
	msg := make([]byte, audioHeaderSize+len(payload))
	binary.BigEndian.PutUint16(msg[0:2], audioPacketMagic)
	msg[2] = packetVersion
	msg[3] = format
	binary.BigEndian.PutUint64(msg[4:12], uint64(time.Now().UnixMilli()))
	binary.BigEndian.PutUint32(msg[12:16], uint32(rate))
	msg[16] = 1
	binary.BigEndian.PutUint32(msg[17:21], uint32(len(payload)))
	copy(msg[audioHeaderSize:], payload)
	return msg
}

// EncodeSpectrum packs one display-ready spectral frame as float32
// bins.
func (pe *PacketEncoder) EncodeSpectrum(frame dsp.SpectralFrame) []byte {
	payload := make([]byte, len(frame.Data)*4)
	for i, v := range frame.Data {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(float32(v)))
	}

	format := uint8(formatFloat32)
	if pe.compress && pe.encoder != nil {
		payload = pe.encoder.EncodeAll(payload, nil)
		format = formatZstd
	}

	msg := make([]byte, spectrumHeaderSize+len(payload))
	binary.BigEndian.PutUint16(msg[0:2], spectrumPacketMagic)
	msg[2] = packetVersion
	msg[3] = format
	binary.BigEndian.PutUint32(msg[4:8], uint32(frame.FFTSize))
	binary.BigEndian.PutUint32(msg[8:12], uint32(frame.SampleRate))
	binary.BigEndian.PutUint64(msg[12:20], frame.CenterFreq)
	binary.BigEndian.PutUint64(msg[20:28], uint64(time.Now().UnixMilli()))
	copy(msg[spectrumHeaderSize:], payload)
	return msg
}
