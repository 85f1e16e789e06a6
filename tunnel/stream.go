package tunnel

import (
	"io"
	"net/http"
	"sync"
)

// Stream turns an HTTP/2 CONNECT exchange into a duplex byte stream: reads come from the
// request body, writes go to the response and are flushed immediately.
//
// It is only valid while the handler that created it is still running.
type Stream struct {
	body  io.ReadCloser
	w     io.Writer
	rc    *http.ResponseController
	once  sync.Once
	close error
}

// NewStream wraps w and r. The response status must already have been written.
func NewStream(w http.ResponseWriter, r *http.Request) *Stream {
	return &Stream{body: r.Body, w: w, rc: http.NewResponseController(w)}
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, s.rc.Flush()
}

// Close stops reading from the client. The response side ends when the handler returns.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.close = s.body.Close()
	})
	return s.close
}
