package format

import (
	"encoding/json"
	"fmt"
	"io"
)

type JSONFormatter struct {
	pretty bool
}

func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if f.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(plain(data)); err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return nil
}
