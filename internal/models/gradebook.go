package models

// Student identifies a learner enrolled in the course.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assignment describes a gradable item. ChapterID is optional; when empty the
// chapter is derived from the assignment name during normalization.
type Assignment struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	MaxScore  float64 `json:"max_score"`
	ChapterID string  `json:"chapter_id,omitempty"`
}

// Grade is a raw score for one student on one assignment.
type Grade struct {
	StudentID    string  `json:"student_id"`
	AssignmentID string  `json:"assignment_id"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"max_score"`
}

// GradebookInput is the normalized snapshot handed over by the extraction layer.
type GradebookInput struct {
	CourseID    string       `json:"course_id"`
	Students    []Student    `json:"students"`
	Assignments []Assignment `json:"assignments"`
	Grades      []Grade      `json:"grades"`
}
