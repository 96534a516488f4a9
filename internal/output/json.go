package output

import (
	"encoding/json"

	"github.com/marketlens/marketlens/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatBatch renders a fetch batch as JSON.
func (f *JSONFormatter) FormatBatch(batch *core.FetchBatch) (string, error) {
	if batch == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(batch, "", "  ")
	} else {
		data, err = json.Marshal(batch)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
