package relay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Compression is the content encoding the sender advertised. The server
// never inspects payload bytes; the label is echoed back as
// Content-Encoding on the download side.
type Compression string

const (
	CompressionNone    Compression = "none"
	CompressionGzip    Compression = "gzip"
	CompressionDeflate Compression = "deflate"
	CompressionBrotli  Compression = "br"
	CompressionZstd    Compression = "zstd"
)

// ParseCompression maps a wire label to a Compression value.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "deflate":
		return CompressionDeflate, nil
	case "br":
		return CompressionBrotli, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression type: %q", s)
	}
}

func (c Compression) String() string {
	if c == "" {
		return string(CompressionNone)
	}
	return string(c)
}

// MarshalJSON keeps the zero value serializing as "none".
func (c Compression) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Compression) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCompression(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
