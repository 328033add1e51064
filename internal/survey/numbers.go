package survey

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/migueljbento/percenseo/pkg/errors"
)

// ReadNumbers returns the first field of every CSV record, trimmed. Records
// whose first field is empty are skipped; extra columns are ignored.
func ReadNumbers(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var numbers []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("survey: read numbers: %w: %w", apperrors.ErrInputResolution, err)
		}
		if len(record) == 0 {
			continue
		}
		if number := strings.TrimSpace(record[0]); number != "" {
			numbers = append(numbers, number)
		}
	}
	return numbers, nil
}

// ReadNumbersFile opens path and reads it with ReadNumbers.
func ReadNumbersFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("survey: open numbers file: %w: %w", apperrors.ErrInputResolution, err)
	}
	defer f.Close()
	return ReadNumbers(f)
}
