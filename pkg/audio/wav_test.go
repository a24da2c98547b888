package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVPCM16LE_Header(t *testing.T) {
	pcm := make([]byte, 320) // 10ms at 16kHz mono
	out, err := EncodeWAVPCM16LE(pcm, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(out), 44+len(pcm))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %q %q", out[0:4], out[8:12])
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}

func TestEncodeWAVPCM16LE_DefaultSampleRate(t *testing.T) {
	out, err := EncodeWAVPCM16LE([]byte{0, 0}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want default 16000", got)
	}
}

func TestDetectFormat(t *testing.T) {
	wav, err := EncodeWAVPCM16LE([]byte{0, 0}, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		payload []byte
		want    Format
	}{
		{"wav", wav, FormatWAV},
		{"ogg", []byte("OggS\x00rest"), FormatOGG},
		{"mp3 id3", []byte("ID3\x04rest"), FormatMP3},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{"short", []byte{0x01}, FormatUnknown},
		{"garbage", []byte("not audio at all"), FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.payload); got != tt.want {
				t.Errorf("DetectFormat = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		ct   string
		want Format
	}{
		{"audio/mpeg", FormatMP3},
		{"audio/wav", FormatWAV},
		{"audio/x-wav", FormatWAV},
		{"audio/ogg", FormatOGG},
		{"audio/mpeg; charset=binary", FormatMP3},
		{"text/plain", FormatUnknown},
	}
	for _, tt := range tests {
		if got := FormatFromContentType(tt.ct); got != tt.want {
			t.Errorf("FormatFromContentType(%q) = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestFormatMIMETypeAndExtension(t *testing.T) {
	if got := FormatMP3.MIMEType(); got != "audio/mpeg" {
		t.Errorf("MIMEType = %q", got)
	}
	if got := FormatUnknown.MIMEType(); got != "application/octet-stream" {
		t.Errorf("MIMEType unknown = %q", got)
	}
	if got := FormatWAV.Extension(); got != ".wav" {
		t.Errorf("Extension = %q", got)
	}
	if got := FormatUnknown.Extension(); got != ".bin" {
		t.Errorf("Extension unknown = %q", got)
	}
}
