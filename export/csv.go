package export

import (
	"encoding/csv"
	"io"

	"github.com/warp/visit-engine/engine"
)

// CSV renders a report as comma-separated values.
type CSV struct{}

func (CSV) ContentType() string { return "text/csv; charset=utf-8" }
func (CSV) Extension() string   { return "csv" }

func (CSV) Render(w io.Writer, r *engine.Report) error {
	cw := csv.NewWriter(w)
	for _, l := range layout(r) {
		if err := cw.Write(l.cells); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
