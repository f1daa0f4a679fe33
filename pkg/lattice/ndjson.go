package lattice

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// decodeBody decodes a response body into out. List-shaped responses arrive
// as newline-delimited JSON (one document per line); everything else is a
// single JSON document.
func decodeBody(resp *http.Response, out any) error {
	if strings.Contains(resp.Header.Get("Content-Type"), "x-ndjson") {
		return decodeNDJSON(resp.Body, out)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// maxNDJSONLine bounds a single document line. Large graph nodes fit well
// under this; anything bigger indicates a protocol error.
const maxNDJSONLine = 16 * 1024 * 1024

// decodeNDJSON reads newline-delimited JSON into out, which must unmarshal
// from a JSON array. Blank lines are skipped.
func decodeNDJSON(r io.Reader, out any) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxNDJSONLine)

	elems := make([]json.RawMessage, 0, 16)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		elems = append(elems, append(json.RawMessage(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading ndjson response: %w", err)
	}

	arr, err := json.Marshal(elems)
	if err != nil {
		return fmt.Errorf("assembling ndjson response: %w", err)
	}
	if err := json.Unmarshal(arr, out); err != nil {
		return fmt.Errorf("decoding ndjson response: %w", err)
	}
	return nil
}
