package providers

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// errStopSSE ends readSSE early without an error.
var errStopSSE = errors.New("providers: stop sse")

var (
	sseData = []byte("data:")
	sseDone = []byte("[DONE]")
)

// readSSE calls onData with the payload of every server-sent event. Multi-line
// data fields are joined with newlines; other fields are ignored. A [DONE]
// payload or errStopSSE from onData ends the stream.
func readSSE(r io.Reader, onData func([]byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 8<<20)

	var event bytes.Buffer
	dispatch := func() error {
		payload := bytes.TrimSpace(event.Bytes())
		event.Reset()
		switch {
		case len(payload) == 0:
			return nil
		case bytes.Equal(payload, sseDone):
			return errStopSSE
		default:
			return onData(bytes.Clone(payload))
		}
	}

	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			if err := dispatch(); err != nil {
				return ignoreStop(err)
			}
			continue
		}
		data, ok := bytes.CutPrefix(line, sseData)
		if !ok {
			continue
		}
		if event.Len() > 0 {
			event.WriteByte('\n')
		}
		event.Write(bytes.TrimSpace(data))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("providers: read sse: %w", err)
	}
	return ignoreStop(dispatch())
}

func ignoreStop(err error) error {
	if errors.Is(err, errStopSSE) {
		return nil
	}
	return err
}
