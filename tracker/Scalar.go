package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/gotd/td"
)

// Scalar tracks a single metric over the updates of an experiment and
// saves the sequence of values to disk with gob. The saved data can
// be read back with LoadScalar.
type Scalar struct {
	key      string
	filename string
	values   []float64
}

// NewScalar returns a Scalar tracker that records the metric named
// key, e.g. "SimpleTD/loss", and saves to filename.
func NewScalar(key, filename string) *Scalar {
	return &Scalar{key: key, filename: filename}
}

// Track records the tracked metric of a single update. The metrics
// must contain the tracked key.
func (s *Scalar) Track(m td.Metrics) error {
	value, ok := m[s.key]
	if !ok {
		return fmt.Errorf("track: metrics have no key %v", s.key)
	}
	s.values = append(s.values, value)
	return nil
}

// Values returns the values recorded so far in update order. The
// returned slice is the tracker's own storage and must be treated as
// read-only.
func (s *Scalar) Values() []float64 {
	return s.values
}

// Save writes the recorded values to disk
func (s *Scalar) Save() error {
	file, err := os.Create(s.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err := en.Encode(s.values); err != nil {
		return fmt.Errorf("save: could not encode tracked values: %v",
			err)
	}
	return nil
}
