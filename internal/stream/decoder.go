// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder converts successive byte chunks into text. It is not safe for
// concurrent use.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	buf     []byte
}

// NewDecoder returns a decoder for charset. An empty charset means UTF-8.
// Unknown charsets return an error together with a UTF-8 decoder.
func NewDecoder(charset string) (*Decoder, error) {
	enc, err := lookupEncoding(charset)
	d := &Decoder{
		t:   enc.NewDecoder(),
		buf: make([]byte, 4096),
	}
	return d, err
}

func lookupEncoding(charset string) (encoding.Encoding, error) {
	charset = strings.TrimSpace(charset)
	if charset == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return unicode.UTF8, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc, nil
}

// Decode returns the text decodable from chunk plus any carried bytes.
// An incomplete trailing sequence is held back for the next call.
func (d *Decoder) Decode(chunk []byte) string {
	return d.run(chunk, false)
}

// Flush decodes whatever is held back, replacing an incomplete sequence with
// U+FFFD, and resets the decoder.
func (d *Decoder) Flush() string {
	out := d.run(nil, true)
	d.t.Reset()
	return out
}

// Pending returns the number of carried bytes.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

func (d *Decoder) run(chunk []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	d.pending = d.pending[:0]

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.buf, src, atEOF)
		out.Write(d.buf[:nDst])
		src = src[nSrc:]

		switch err {
		case nil:
			return out.String()
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.buf = make([]byte, 2*len(d.buf))
			}
		case transform.ErrShortSrc:
			if atEOF {
				// Transformers replace incomplete input at EOF; guard anyway.
				if len(src) > 0 {
					out.WriteRune('\uFFFD')
				}
				return out.String()
			}
			d.pending = append(d.pending, src...)
			return out.String()
		default:
			// Undecodable byte: substitute and skip it.
			if len(src) == 0 {
				return out.String()
			}
			out.WriteRune('\uFFFD')
			src = src[1:]
		}
	}
}
