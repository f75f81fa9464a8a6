package agentexec

// NewStaticStream returns a Stream that replays the given lines and then
// terminates with err. It spawns no process; intended for tests of stream
// consumers.
func NewStaticStream(lines []string, err error) *Stream {
	stream := &Stream{
		lines:   make(chan string),
		stopped: make(chan struct{}),
	}
	go func() {
		defer close(stream.lines)
		for _, line := range lines {
			select {
			case stream.lines <- line:
			case <-stream.stopped:
				stream.err = ErrCancelled
				return
			}
		}
		stream.err = err
	}()
	return stream
}
