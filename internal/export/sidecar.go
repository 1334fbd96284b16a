package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

func formatRow(values []float64, verb string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf(verb, v)
	}
	return strings.Join(parts, " ")
}

// encodeBvals renders b-values as one space-separated line.
func encodeBvals(bvals []float64) []byte {
	return []byte(formatRow(bvals, "%0.1f"))
}

// encodeBvecs renders gradient directions as x, y and z lines.
func encodeBvecs(bvecs [3][]float64) []byte {
	var b strings.Builder
	for _, row := range bvecs {
		b.WriteString(formatRow(row, "%0.4f"))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// encodeJSON renders v with two-space indentation and every object's keys sorted.
func encodeJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// round trip through generic values so struct fields are sorted as well
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
