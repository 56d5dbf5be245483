package analytics

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/noah-isme/gradebook-insights/internal/models"
)

// OtherChapter groups assignments whose chapter cannot be determined.
const OtherChapter = "Other"

var chapterPrefixes = []struct {
	pattern string
	label   string
}{
	{"Chapter ", "Chapter "},
	{"Ch ", "Chapter "},
	{"Unit ", "Unit "},
	{"Week ", "Week "},
	{"Module ", "Module "},
}

type cell struct {
	value     float64
	submitted bool
}

// GradeMatrix is the normalized student x assignment percentage table. It is
// immutable once built; accessors return copies.
type GradeMatrix struct {
	courseID     string
	students     []models.Student
	assignments  []models.Assignment
	studentIdx   map[string]int
	chapters     []string
	cells        [][]cell
	submissions  int
	dropped      int
	rawGrades    int
	rawAssigned  int
	chapterNames []string
}

// Point is one submitted score in assignment sequence order.
type Point struct {
	Index        int
	AssignmentID string
	Chapter      string
	Score        float64
}

// BuildMatrix validates the raw gradebook and normalizes every resolvable grade
// to a percentage in [0,100]. It never fails; unusable rows are dropped.
func BuildMatrix(in models.GradebookInput) *GradeMatrix {
	m := &GradeMatrix{
		courseID:    strings.TrimSpace(in.CourseID),
		studentIdx:  make(map[string]int, len(in.Students)),
		rawGrades:   len(in.Grades),
		rawAssigned: len(in.Assignments),
	}

	seen := make(map[string]struct{}, len(in.Students))
	for _, s := range in.Students {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		m.students = append(m.students, models.Student{ID: id, Name: s.Name})
	}
	sort.SliceStable(m.students, func(i, j int) bool { return m.students[i].ID < m.students[j].ID })
	for i, s := range m.students {
		m.studentIdx[s.ID] = i
	}

	assignmentIdx := make(map[string]int, len(in.Assignments))
	for _, a := range in.Assignments {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			continue
		}
		if _, dup := assignmentIdx[id]; dup {
			continue
		}
		a.ID = id
		assignmentIdx[id] = len(m.assignments)
		m.assignments = append(m.assignments, a)
		m.chapters = append(m.chapters, resolveChapter(a))
	}

	m.cells = make([][]cell, len(m.students))
	for i := range m.cells {
		m.cells[i] = make([]cell, len(m.assignments))
	}

	for _, g := range in.Grades {
		row, okS := m.studentIdx[strings.TrimSpace(g.StudentID)]
		col, okA := assignmentIdx[strings.TrimSpace(g.AssignmentID)]
		if !okS || !okA {
			m.dropped++
			continue
		}
		pct, ok := normalize(g, m.assignments[col])
		if !ok {
			m.dropped++
			continue
		}
		if !m.cells[row][col].submitted {
			m.submissions++
		}
		m.cells[row][col] = cell{value: pct, submitted: true}
	}

	names := make(map[string]struct{})
	for _, ch := range m.chapters {
		names[ch] = struct{}{}
	}
	for name := range names {
		m.chapterNames = append(m.chapterNames, name)
	}
	sort.Strings(m.chapterNames)

	return m
}

func normalize(g models.Grade, a models.Assignment) (float64, bool) {
	maxScore := a.MaxScore
	if maxScore <= 0 || math.IsNaN(maxScore) || math.IsInf(maxScore, 0) {
		maxScore = g.MaxScore
	}
	if maxScore <= 0 || math.IsNaN(maxScore) || math.IsInf(maxScore, 0) {
		return 0, false
	}
	if math.IsNaN(g.Score) || math.IsInf(g.Score, 0) {
		return 0, false
	}
	return clamp(g.Score/maxScore*100, 0, 100), true
}

func resolveChapter(a models.Assignment) string {
	if ch := strings.TrimSpace(a.ChapterID); ch != "" {
		return ch
	}
	return ChapterFromName(a.Name)
}

// ChapterFromName derives a chapter label such as "Chapter 3" or "Unit 2"
// from an assignment name, falling back to OtherChapter.
func ChapterFromName(name string) string {
	for _, p := range chapterPrefixes {
		idx := strings.Index(name, p.pattern)
		if idx < 0 {
			continue
		}
		rest := name[idx+len(p.pattern):]
		end := strings.IndexFunc(rest, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if end < 0 {
			end = len(rest)
		}
		if end > 0 {
			return p.label + rest[:end]
		}
	}
	return OtherChapter
}

// IsEmpty reports whether analyzers must fall back to their sentinels.
func (m *GradeMatrix) IsEmpty() bool {
	return m == nil || m.rawGrades == 0 || m.rawAssigned == 0 || m.submissions == 0
}

// CourseID returns the trimmed course identifier.
func (m *GradeMatrix) CourseID() string { return m.courseID }

// Dropped counts grades discarded during normalization.
func (m *GradeMatrix) Dropped() int { return m.dropped }

// Submissions counts populated cells.
func (m *GradeMatrix) Submissions() int { return m.submissions }

// Students returns students ordered by id.
func (m *GradeMatrix) Students() []models.Student {
	out := make([]models.Student, len(m.students))
	copy(out, m.students)
	return out
}

// chapterMap returns the assignment id to chapter mapping.
func (m *GradeMatrix) chapterMap() map[string]string {
	out := make(map[string]string, len(m.assignments))
	for i, a := range m.assignments {
		out[a.ID] = m.chapters[i]
	}
	return out
}

// Chapters lists distinct chapter names in ascending order.
func (m *GradeMatrix) Chapters() []string {
	out := make([]string, len(m.chapterNames))
	copy(out, m.chapterNames)
	return out
}

// score looks up one normalized cell. The boolean is false when not submitted.
func (m *GradeMatrix) score(studentID, assignmentID string) (float64, bool) {
	row, ok := m.studentIdx[studentID]
	if !ok {
		return 0, false
	}
	for col, a := range m.assignments {
		if a.ID == assignmentID {
			c := m.cells[row][col]
			return c.value, c.submitted
		}
	}
	return 0, false
}

// Series returns a student's submitted scores in assignment order.
func (m *GradeMatrix) Series(studentID string) []Point {
	row, ok := m.studentIdx[studentID]
	if !ok {
		return nil
	}
	points := make([]Point, 0, len(m.assignments))
	for col, c := range m.cells[row] {
		if !c.submitted {
			continue
		}
		points = append(points, Point{
			Index:        col,
			AssignmentID: m.assignments[col].ID,
			Chapter:      m.chapters[col],
			Score:        c.value,
		})
	}
	return points
}

// column returns the submitted scores for one assignment column.
func (m *GradeMatrix) column(col int) []float64 {
	scores := make([]float64, 0, len(m.students))
	for row := range m.cells {
		if c := m.cells[row][col]; c.submitted {
			scores = append(scores, c.value)
		}
	}
	return scores
}

// studentSubmitted reports whether a student row has any submission.
func (m *GradeMatrix) studentSubmitted(row int) bool {
	for _, c := range m.cells[row] {
		if c.submitted {
			return true
		}
	}
	return false
}

func values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Score
	}
	return out
}

func indices(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = float64(p.Index)
	}
	return out
}
