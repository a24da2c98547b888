package audio

import "bytes"

// Format identifies the container format of an audio payload.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOGG     Format = "ogg"
	FormatUnknown Format = ""
)

// MIMEType returns the MIME type for the format, defaulting to
// application/octet-stream for unknown formats.
func (f Format) MIMEType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatOGG:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the conventional file extension for the format,
// including the leading dot. Unknown formats map to ".bin".
func (f Format) Extension() string {
	switch f {
	case FormatWAV:
		return ".wav"
	case FormatMP3:
		return ".mp3"
	case FormatOGG:
		return ".ogg"
	default:
		return ".bin"
	}
}

// DetectFormat sniffs the container format from the payload's magic bytes.
// It returns [FormatUnknown] when the payload is too short or unrecognised.
func DetectFormat(payload []byte) Format {
	if len(payload) < 4 {
		return FormatUnknown
	}
	switch {
	case len(payload) >= 12 && bytes.Equal(payload[0:4], []byte("RIFF")) && bytes.Equal(payload[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.Equal(payload[0:4], []byte("OggS")):
		return FormatOGG
	case bytes.Equal(payload[0:3], []byte("ID3")):
		return FormatMP3
	case payload[0] == 0xFF && payload[1]&0xE0 == 0xE0:
		// Raw MPEG audio frame sync.
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// FormatFromContentType maps an HTTP content type to a [Format]. Parameters
// after a semicolon are ignored.
func FormatFromContentType(contentType string) Format {
	if i := bytes.IndexByte([]byte(contentType), ';'); i >= 0 {
		contentType = contentType[:i]
	}
	switch contentType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return FormatWAV
	case "audio/mpeg", "audio/mp3":
		return FormatMP3
	case "audio/ogg", "application/ogg":
		return FormatOGG
	default:
		return FormatUnknown
	}
}
