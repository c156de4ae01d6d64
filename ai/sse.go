package ai

import (
	"bufio"
	"io"
	"strings"
)

const sseDone = "[DONE]"

// scanSSE reads server-sent events from r and invokes fn once per data
// line with the current event name (empty when the server sends bare data
// events). fn returning false stops the scan. Lines that are not event or
// data fields are ignored.
func scanSSE(r io.Reader, fn func(event, data string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(line[len("event: "):])
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimSpace(line[len("data: "):])
			if !fn(event, data) {
				return nil
			}
			event = ""
		}
	}
	return scanner.Err()
}
