package sse

import (
	"bufio"
	"bytes"
	"io"
)

// MaxLineSize bounds a single data line. Producers must keep encoded events
// below it; JSON escaping can grow a payload up to six times its input.
const MaxLineSize = 8 << 20

// Reader decodes an event stream. Comment lines and fields other than data
// are skipped.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)

	return &Reader{
		scanner: scanner,
	}
}

// Next returns the data of the next event, or io.EOF when the stream ends.
func (r *Reader) Next() ([]byte, error) {
	var data [][]byte

	for r.scanner.Scan() {
		line := r.scanner.Bytes()

		if len(line) == 0 {
			if len(data) == 0 {
				continue
			}

			return bytes.Join(data, []byte("\n")), nil
		}

		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		if string(field) != "data" {
			continue
		}

		value = bytes.TrimPrefix(value, []byte(" "))
		data = append(data, bytes.Clone(value))
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, io.EOF
}
