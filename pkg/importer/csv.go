package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

func parseCSV(data []byte) (models.GradebookInput, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.GradebookInput{}, fmt.Errorf("%w: empty csv", ErrMissingColumn)
		}
		return models.GradebookInput{}, fmt.Errorf("read csv header: %w", err)
	}
	builder, err := newRowBuilder(header)
	if err != nil {
		return models.GradebookInput{}, err
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return models.GradebookInput{}, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if err := builder.add(record, line); err != nil {
			return models.GradebookInput{}, err
		}
	}
	return builder.result(), nil
}
