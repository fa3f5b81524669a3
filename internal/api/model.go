package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

// User is the backend-side profile resolved from a credential.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// JobStatus is an open enumeration; authoritative values live server-side.
type JobStatus string

const (
	JobStatusApplied   JobStatus = "applied"
	JobStatusScreening JobStatus = "screening"
	JobStatusInterview JobStatus = "interview"
	JobStatusOffer     JobStatus = "offer"
	JobStatusRejected  JobStatus = "rejected"
)

// Job is a tracked application.
type Job struct {
	ID          string    `json:"id"`
	Company     string    `json:"company"`
	Role        string    `json:"role"`
	Description string    `json:"description,omitempty"`
	Status      JobStatus `json:"status"`
}

// CreateJobRequest is the body of POST /jobs.
type CreateJobRequest struct {
	Company     string `json:"company" validate:"required"`
	Role        string `json:"role" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// Keywords decodes either a JSON array of strings or a comma-separated string.
type Keywords []string

func (k *Keywords) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*k = nil
		return nil
	}
	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*k = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	var out []string
	for _, part := range strings.Split(joined, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*k = out
	return nil
}

// ATSResult is computed once per job and cached server-side.
type ATSResult struct {
	MatchScore      float64  `json:"matchScore"`
	MissingKeywords Keywords `json:"missingKeywords"`
	Suggestions     string   `json:"suggestions"`
}

// InterviewQuestion is generated server-side on demand.
type InterviewQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Category string `json:"category"`
}

// SubmitAnswerRequest is the body of POST /answers.
type SubmitAnswerRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Answer     string `json:"answer" validate:"required"`
}

// AnswerResult is the graded feedback for one answer.
type AnswerResult struct {
	Score          float64 `json:"score"`
	Feedback       string  `json:"feedback"`
	ImprovedAnswer string  `json:"improvedAnswer"`
}

// Resume is uploaded-file metadata; the content stays server-side.
type Resume struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// Overview is the aggregate report behind the dashboard.
type Overview struct {
	TotalJobs             int            `json:"totalJobs"`
	JobsByStatus          map[string]int `json:"jobsByStatus"`
	AverageATSScore       float64        `json:"averageATSScore"`
	AverageInterviewScore float64        `json:"averageInterviewScore"`
	AnswersPracticed      int            `json:"answersPracticed"`
}

// ATSProgressItem is one point of the ATS score history.
type ATSProgressItem struct {
	Score     float64 `json:"score"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// WeakArea is a skill tag inferred from repeated low-scoring answers.
type WeakArea struct {
	Skill string `json:"skill"`
}
