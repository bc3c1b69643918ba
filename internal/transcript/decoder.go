package transcript

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns a sequence of byte chunks into text. Multi-byte characters split across chunk boundaries
// are held back until the rest of their bytes arrive, so decoding chunk by chunk yields the same text as
// decoding the concatenated bytes.
type Decoder struct {
	t       transform.Transformer
	pending []byte
}

// NewDecoder returns a UTF-8 decoder. Invalid sequences decode to U+FFFD.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode decodes chunk. While stream is true an incomplete trailing character is kept for the next call;
// a call with stream set to false flushes it and resets the decoder.
func (d *Decoder) Decode(chunk []byte, stream bool) string {
	src := append(d.pending, chunk...)
	d.pending = nil
	if len(src) == 0 {
		return ""
	}

	// Every invalid byte may expand to the three bytes of U+FFFD.
	dst := make([]byte, len(src)*3+utf8.UTFMax)
	nDst, nSrc, err := d.t.Transform(dst, src, !stream)
	if errors.Is(err, transform.ErrShortSrc) {
		d.pending = append([]byte(nil), src[nSrc:]...)
	}
	if !stream {
		d.t.Reset()
	}
	return string(dst[:nDst])
}

// Pending reports how many bytes are held back waiting for the rest of a character.
func (d *Decoder) Pending() int {
	return len(d.pending)
}
