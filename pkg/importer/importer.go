// Package importer turns uploaded gradebook files into models.GradebookInput.
//
// JSON uploads carry the full gradebook document and are validated against a
// JSON schema. CSV and XLSX uploads use a long layout with one grade per row:
//
//	student_id, student_name, assignment_id, assignment_name, chapter_id, score, max_score
//
// Only student_id, assignment_id and score are required columns. A row with an
// empty score registers the student and assignment without a grade.
package importer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

// Format is a supported upload encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"

	defaultMaxScore = 100
)

var (
	ErrUnsupportedFormat = errors.New("unsupported gradebook format")
	ErrTooLarge          = errors.New("gradebook upload exceeds size limit")
	ErrMissingColumn     = errors.New("required column missing")
)

// DetectFormat maps a file name to a Format by extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Parse reads at most maxBytes from r and decodes it according to the
// extension of filename. courseID, when set, overrides any course id found in
// the file.
func Parse(courseID, filename string, r io.Reader, maxBytes int64) (models.GradebookInput, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return models.GradebookInput{}, err
	}
	data, err := readLimited(r, maxBytes)
	if err != nil {
		return models.GradebookInput{}, err
	}

	var in models.GradebookInput
	switch format {
	case FormatJSON:
		in, err = parseJSON(data)
	case FormatCSV:
		in, err = parseCSV(data)
	case FormatXLSX:
		in, err = parseXLSX(data)
	}
	if err != nil {
		return models.GradebookInput{}, err
	}
	if courseID != "" {
		in.CourseID = courseID
	}
	return in, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// rowBuilder accumulates long-layout rows into a gradebook, keeping the first
// occurrence of every student and assignment.
type rowBuilder struct {
	columns     map[string]int
	in          models.GradebookInput
	students    map[string]struct{}
	assignments map[string]struct{}
}

func newRowBuilder(header []string) (*rowBuilder, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.TrimPrefix(key, "\ufeff")
		if _, dup := columns[key]; !dup {
			columns[key] = i
		}
	}
	for _, required := range []string{"student_id", "assignment_id", "score"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return &rowBuilder{
		columns:     columns,
		students:    make(map[string]struct{}),
		assignments: make(map[string]struct{}),
	}, nil
}

func (b *rowBuilder) cell(row []string, name string) string {
	i, ok := b.columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// add consumes one data row. line is used for error messages only.
func (b *rowBuilder) add(row []string, line int) error {
	studentID := b.cell(row, "student_id")
	assignmentID := b.cell(row, "assignment_id")
	if studentID == "" && assignmentID == "" {
		return nil
	}
	if studentID == "" || assignmentID == "" {
		return fmt.Errorf("line %d: student_id and assignment_id are both required", line)
	}

	maxScore := float64(defaultMaxScore)
	if raw := b.cell(row, "max_score"); raw != "" {
		v, err := parseNumber(raw)
		if err != nil {
			return fmt.Errorf("line %d: invalid max_score %q", line, raw)
		}
		maxScore = v
	}

	if _, ok := b.students[studentID]; !ok {
		b.students[studentID] = struct{}{}
		b.in.Students = append(b.in.Students, models.Student{ID: studentID, Name: b.cell(row, "student_name")})
	}
	if _, ok := b.assignments[assignmentID]; !ok {
		b.assignments[assignmentID] = struct{}{}
		name := b.cell(row, "assignment_name")
		if name == "" {
			name = assignmentID
		}
		b.in.Assignments = append(b.in.Assignments, models.Assignment{
			ID:        assignmentID,
			Name:      name,
			MaxScore:  maxScore,
			ChapterID: b.cell(row, "chapter_id"),
		})
	}

	raw := b.cell(row, "score")
	if raw == "" {
		return nil
	}
	score, err := parseNumber(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid score %q", line, raw)
	}
	b.in.Grades = append(b.in.Grades, models.Grade{
		StudentID:    studentID,
		AssignmentID: assignmentID,
		Score:        score,
		MaxScore:     maxScore,
	})
	return nil
}

// parseNumber accepts finite decimals only; strconv also takes NaN and Inf.
func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", raw)
	}
	return v, nil
}

func (b *rowBuilder) result() models.GradebookInput {
	if b.in.Students == nil {
		b.in.Students = []models.Student{}
	}
	if b.in.Assignments == nil {
		b.in.Assignments = []models.Assignment{}
	}
	if b.in.Grades == nil {
		b.in.Grades = []models.Grade{}
	}
	return b.in
}
