// Package pdf provides minimal inspection helpers for uploaded PDF documents.
package pdf

import (
	"bytes"
	"fmt"
)

// CountPages returns the number of pages declared in a PDF document.
// It scans the raw object dictionary for page type markers, which is
// sufficient for the uncompressed cross reference tables produced by
// common PDF writers.
func CountPages(data []byte) (int, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, fmt.Errorf("not a PDF document")
	}

	pages := countMarker(data, "/Type /Page") + countMarker(data, "/Type/Page")
	trees := countMarker(data, "/Type /Pages") + countMarker(data, "/Type/Pages")

	n := pages - trees
	if n <= 0 {
		return 0, fmt.Errorf("could not determine page count")
	}
	return n, nil
}

func countMarker(data []byte, marker string) int {
	return bytes.Count(data, []byte(marker))
}
