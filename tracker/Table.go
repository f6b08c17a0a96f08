package tracker

import (
	"fmt"
	"os"
	"sort"

	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"

	"github.com/samuelfneumann/gotd/td"
)

// Table records every metric of every update into an etable.Table,
// one row per update, and saves the result as a tab separated file.
// The first tracked metrics fix the table's columns: an update
// counter followed by the metric keys in sorted order. Every later
// update must carry at least those keys.
type Table struct {
	filename string
	table    *etable.Table
	keys     []string
	row      int
}

// NewTable returns a Table tracker that saves to filename
func NewTable(filename string) *Table {
	return &Table{filename: filename}
}

// Track appends a row holding the metrics of a single update
func (t *Table) Track(m td.Metrics) error {
	if t.table == nil {
		t.init(m)
	}

	t.table.SetNumRows(t.row + 1)
	t.table.SetCellFloat("Update", t.row, float64(t.row))
	for _, key := range t.keys {
		value, ok := m[key]
		if !ok {
			return fmt.Errorf("track: metrics have no key %v", key)
		}
		t.table.SetCellFloat(key, t.row, value)
	}
	t.row++
	return nil
}

// init fixes the table schema from the first tracked metrics
func (t *Table) init(m td.Metrics) {
	t.keys = make([]string, 0, len(m))
	for key := range m {
		t.keys = append(t.keys, key)
	}
	sort.Strings(t.keys)

	sch := etable.Schema{
		{"Update", etensor.INT64, nil, nil},
	}
	for _, key := range t.keys {
		sch = append(sch, etable.Column{key, etensor.FLOAT64, nil, nil})
	}

	t.table = &etable.Table{}
	t.table.SetMetaData("name", "UpdateLog")
	t.table.SetMetaData("desc", "Record of metrics over learner updates")
	t.table.SetFromSchema(sch, 0)
}

// Rows returns the number of updates recorded so far
func (t *Table) Rows() int {
	return t.row
}

// Column returns the recorded values of one metric in update order
func (t *Table) Column(key string) ([]float64, error) {
	if t.table == nil {
		return nil, fmt.Errorf("column: no metrics were tracked")
	}
	found := key == "Update"
	for _, k := range t.keys {
		found = found || k == key
	}
	if !found {
		return nil, fmt.Errorf("column: no metric named %v was tracked",
			key)
	}

	out := make([]float64, t.row)
	for row := 0; row < t.row; row++ {
		out[row] = t.table.CellFloat(key, row)
	}
	return out, nil
}

// Save writes the recorded metrics as a tab separated file
func (t *Table) Save() error {
	if t.table == nil {
		return fmt.Errorf("save: no metrics were tracked")
	}

	file, err := os.Create(t.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := t.table.WriteCSVHeaders(file, etable.Tab); err != nil {
		return fmt.Errorf("save: could not write headers: %v", err)
	}
	for row := 0; row < t.row; row++ {
		if err := t.table.WriteCSVRow(file, row, etable.Tab); err != nil {
			return fmt.Errorf("save: could not write row %v: %v", row,
				err)
		}
	}
	return nil
}
