package wire

import (
	"fmt"
	"io"
)

// Frame is one server-sent-event frame. Event is empty for protocols that
// use data-only frames.
type Frame struct {
	Event string
	Data  []byte
}

// DoneSentinel terminates both streaming protocols.
var DoneSentinel = Frame{Data: []byte("[DONE]")}

// WriteFrame writes one frame in event:/data: form. Flushing is the
// caller's responsibility.
func WriteFrame(w io.Writer, f Frame) error {
	if f.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", f.Event); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", f.Data)
	return err
}
