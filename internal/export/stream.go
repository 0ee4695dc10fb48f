package export

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/jimezsa/jobparser/internal/models"
)

// Stream writes each listing as one JSON line the moment it is emitted, so
// partial crawls still leave usable output behind.
type Stream struct {
	enc   *json.Encoder
	count int
	mu    sync.Mutex
}

func NewStream(w io.Writer) *Stream {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Stream{enc: enc}
}

func (s *Stream) Write(listing models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(listing); err != nil {
		return err
	}
	s.count++
	return nil
}

// Count is the number of listings written so far.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
