package sse

import (
	"bytes"
	"net/http"
)

// Event frames payload as a data event. Embedded newlines are split into
// consecutive data lines so the receiver reassembles the original payload.
func Event(payload []byte) []byte {
	var buf bytes.Buffer

	for line := range bytes.SplitSeq(payload, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(bytes.TrimSuffix(line, []byte("\r")))
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')

	return buf.Bytes()
}

// Comment frames a comment line. Clients must ignore it.
func Comment(text string) []byte {
	return []byte(": " + text + "\n\n")
}

func PrepareHeaders(w http.ResponseWriter) {
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
}
