package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/go-playground/validator/v10"
)

// ResumeField is the multipart field name the backend reads uploads from.
const ResumeField = "resume"

var validate = validator.New()

// Me resolves the backend user profile for a credential.
func (c *Client) Me(ctx context.Context, credential string) (User, error) {
	var user User
	err := c.Do(ctx, "/auth/me", credential, nil, &user)
	return user, err
}

// ListJobs returns the current user's jobs.
func (c *Client) ListJobs(ctx context.Context, credential string) ([]Job, error) {
	var jobs []Job
	if err := c.Do(ctx, "/jobs", credential, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// CreateJob validates req and creates a job.
func (c *Client) CreateJob(ctx context.Context, credential string, req CreateJobRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return c.Do(ctx, "/jobs", credential, &Options{Method: http.MethodPost, JSON: req}, nil)
}

// GetJob fetches one job.
func (c *Client) GetJob(ctx context.Context, credential, id string) (Job, error) {
	var job Job
	err := c.Do(ctx, "/jobs/"+url.PathEscape(id), credential, nil, &job)
	return job, err
}

// DeleteJob removes a job.
func (c *Client) DeleteJob(ctx context.Context, credential, id string) error {
	return c.Do(ctx, "/jobs/"+url.PathEscape(id), credential, &Options{Method: http.MethodDelete}, nil)
}

// AnalyzeATS triggers ATS scoring for a job.
func (c *Client) AnalyzeATS(ctx context.Context, credential, jobID string) (ATSResult, error) {
	var result ATSResult
	err := c.Do(ctx, "/ats/analyze", credential, &Options{
		Method: http.MethodPost,
		JSON:   map[string]string{"jobId": jobID},
	}, &result)
	return result, err
}

// GetATS fetches the cached ATS result for a job. A null body means the job
// has not been scored and yields nil.
func (c *Client) GetATS(ctx context.Context, credential, jobID string) (*ATSResult, error) {
	var result *ATSResult
	if err := c.Do(ctx, "/ats/"+url.PathEscape(jobID), credential, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateQuestions asks the backend for the full question set of a job.
func (c *Client) GenerateQuestions(ctx context.Context, credential, jobID string) error {
	return c.Do(ctx, "/interviews/generate/"+url.PathEscape(jobID), credential, &Options{Method: http.MethodPost}, nil)
}

// GenerateOneQuestion asks the backend for one additional question.
func (c *Client) GenerateOneQuestion(ctx context.Context, credential, jobID string) error {
	return c.Do(ctx, "/interviews/generate-one/"+url.PathEscape(jobID), credential, &Options{Method: http.MethodPost}, nil)
}

// ListQuestions lists the questions generated for a job.
func (c *Client) ListQuestions(ctx context.Context, credential, jobID string) ([]InterviewQuestion, error) {
	var questions []InterviewQuestion
	if err := c.Do(ctx, "/interviews/"+url.PathEscape(jobID), credential, nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// SubmitAnswer validates req and returns the graded result.
func (c *Client) SubmitAnswer(ctx context.Context, credential string, req SubmitAnswerRequest) (AnswerResult, error) {
	if err := validate.Struct(req); err != nil {
		return AnswerResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	var result AnswerResult
	err := c.Do(ctx, "/answers", credential, &Options{Method: http.MethodPost, JSON: req}, &result)
	return result, err
}

// ListResumes lists uploaded resume metadata.
func (c *Client) ListResumes(ctx context.Context, credential string) ([]Resume, error) {
	var resumes []Resume
	if err := c.Do(ctx, "/resumes", credential, nil, &resumes); err != nil {
		return nil, err
	}
	return resumes, nil
}

// UploadResume sends a PDF as multipart form data. The response body is not interpreted.
func (c *Client) UploadResume(ctx context.Context, credential, fileName string, r io.Reader) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, ResumeField, fileName))
	header.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy resume: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}
	return c.Do(ctx, "/resumes/upload", credential, &Options{
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": w.FormDataContentType()},
		Body:    &buf,
		Discard: true,
	}, nil)
}

// ReportsOverview fetches aggregate stats.
func (c *Client) ReportsOverview(ctx context.Context, credential string) (Overview, error) {
	var overview Overview
	err := c.Do(ctx, "/reports/overview", credential, nil, &overview)
	return overview, err
}

// ATSProgress fetches the ATS score history. A non-array body yields an empty list.
func (c *Client) ATSProgress(ctx context.Context, credential string) ([]ATSProgressItem, error) {
	var items []ATSProgressItem
	err := c.lenientList(ctx, "/reports/ats-progress", credential, &items)
	return items, err
}

// WeakAreas fetches the derived weak skill list. A non-array body yields an empty list.
func (c *Client) WeakAreas(ctx context.Context, credential string) ([]WeakArea, error) {
	var areas []WeakArea
	err := c.lenientList(ctx, "/reports/weak-areas", credential, &areas)
	return areas, err
}

func (c *Client) lenientList(ctx context.Context, path, credential string, out any) error {
	var raw json.RawMessage
	if err := c.Do(ctx, path, credential, nil, &raw); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}
