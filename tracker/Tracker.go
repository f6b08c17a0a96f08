// Package tracker implements Trackers, which record the metrics of
// learner updates during an experiment and save the recorded data
// after the experiment has finished.
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/gotd/td"
)

// Tracker records the metrics of learner updates and saves the
// recorded data after the experiment has finished
type Tracker interface {
	// Track records the metrics of a single update
	Track(m td.Metrics) error

	// Save writes the recorded data to disk
	Save() error
}

// LoadScalar loads and returns the data saved by a Scalar tracker
func LoadScalar(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadScalar: could not open data file: "+
			"%v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var data []float64
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("loadScalar: could not decode data: %v",
			err)
	}
	return data, nil
}
