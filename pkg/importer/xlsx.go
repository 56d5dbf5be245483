package importer

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

// parseXLSX reads the first worksheet of the workbook.
func parseXLSX(data []byte) (models.GradebookInput, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return models.GradebookInput{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.GradebookInput{}, fmt.Errorf("%w: workbook has no sheets", ErrMissingColumn)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return models.GradebookInput{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return models.GradebookInput{}, fmt.Errorf("%w: sheet %q is empty", ErrMissingColumn, sheets[0])
	}

	builder, err := newRowBuilder(rows[0])
	if err != nil {
		return models.GradebookInput{}, err
	}
	for i, row := range rows[1:] {
		if err := builder.add(row, i+2); err != nil {
			return models.GradebookInput{}, err
		}
	}
	return builder.result(), nil
}
