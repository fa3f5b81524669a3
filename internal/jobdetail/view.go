package jobdetail

import (
	"context"
	"errors"
	"strings"
	"sync"

	"jobcoach-web/internal/api"
	"jobcoach-web/internal/resource"
	"jobcoach-web/internal/shared/metrics"
)

const (
	loadFailed     = "Failed to load job"
	atsFailed      = "Failed to run ATS analysis"
	generateFailed = "Too many requests. Please wait."
	submitFailed   = "Failed to submit answer"
	limitReached   = "Practice limit reached for this job."
)

var (
	// ErrAlreadyComputed is returned when a result the action would produce is already shown.
	ErrAlreadyComputed = errors.New("result already present")
	// ErrPracticeLimit is returned once the per-visit answer ceiling is reached.
	ErrPracticeLimit = errors.New("practice limit reached")
	// ErrEmptyAnswer is returned for a blank answer.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrUnknownQuestion is returned when practicing a question not on the page.
	ErrUnknownQuestion = errors.New("unknown question")
)

// GenerateMode selects how many questions to generate.
type GenerateMode string

const (
	GenerateOne GenerateMode = "one"
	GenerateAll GenerateMode = "all"
)

// Backend is the API surface the job detail page uses.
type Backend interface {
	GetJob(ctx context.Context, credential, id string) (api.Job, error)
	GetATS(ctx context.Context, credential, jobID string) (*api.ATSResult, error)
	AnalyzeATS(ctx context.Context, credential, jobID string) (api.ATSResult, error)
	ListQuestions(ctx context.Context, credential, jobID string) ([]api.InterviewQuestion, error)
	GenerateQuestions(ctx context.Context, credential, jobID string) error
	GenerateOneQuestion(ctx context.Context, credential, jobID string) error
	SubmitAnswer(ctx context.Context, credential string, req api.SubmitAnswerRequest) (api.AnswerResult, error)
}

// Credentials yields the tab's access token.
type Credentials interface {
	RequireCredential(ctx context.Context) (string, error)
}

// Page is one mounted job detail view. Its practice counter lives and dies
// with the mount.
type Page struct {
	scope   *resource.Scope
	jobID   string
	limit   int
	backend Backend
	creds   Credentials

	job resource.Resource[api.Job]

	runATS   resource.Action
	generate resource.Action
	submit   resource.Action

	mu            sync.Mutex
	ats           *api.ATSResult
	atsError      string
	questions     []api.InterviewQuestion
	questionError string
	activeID      string
	draft         string
	result        *api.AnswerResult
	answerError   string
	practiced     int
}

func newPage(jobID string, limit int, backend Backend, creds Credentials) func(*resource.Scope) *Page {
	if limit <= 0 {
		limit = 3
	}
	return func(scope *resource.Scope) *Page {
		return &Page{scope: scope, jobID: jobID, limit: limit, backend: backend, creds: creds}
	}
}

// Load fetches the job, then the cached ATS result and the question list.
// Failures of the latter two leave their sections empty.
func (p *Page) Load(ctx context.Context) error {
	err := resource.Load(ctx, p.scope, &p.job, func(ctx context.Context) (api.Job, error) {
		credential, err := p.creds.RequireCredential(ctx)
		if err != nil {
			return api.Job{}, err
		}
		return p.backend.GetJob(ctx, credential, p.jobID)
	})
	if err != nil {
		return err
	}

	ctx, cancel := p.scope.Bind(ctx)
	defer cancel()
	credential, err := p.creds.RequireCredential(ctx)
	if err != nil {
		return nil
	}
	if ats, err := p.backend.GetATS(ctx, credential, p.jobID); err == nil && ats != nil {
		p.apply(func() { p.ats = ats })
	}
	if questions, err := p.backend.ListQuestions(ctx, credential, p.jobID); err == nil {
		p.apply(func() { p.questions = questions })
	}
	return nil
}

// RunATS scores the job. It does nothing once a result is shown.
func (p *Page) RunATS(ctx context.Context) error {
	p.mu.Lock()
	done := p.ats != nil
	p.mu.Unlock()
	if done {
		return ErrAlreadyComputed
	}

	return p.runATS.Run(func() error {
		p.apply(func() { p.atsError = "" })
		ctx, cancel := p.scope.Bind(ctx)
		defer cancel()

		credential, err := p.creds.RequireCredential(ctx)
		var result api.ATSResult
		if err == nil {
			result, err = p.backend.AnalyzeATS(ctx, credential, p.jobID)
		}
		applied := p.apply(func() {
			if err != nil {
				p.atsError = atsFailed
				return
			}
			p.ats = &result
		})
		if !applied {
			return resource.ErrUnmounted
		}
		return err
	})
}

// Generate asks for questions and re-lists them. It does nothing while
// questions are shown.
func (p *Page) Generate(ctx context.Context, mode GenerateMode) error {
	p.mu.Lock()
	have := len(p.questions) > 0
	p.mu.Unlock()
	if have {
		return ErrAlreadyComputed
	}

	return p.generate.Run(func() error {
		p.apply(func() { p.questionError = "" })
		ctx, cancel := p.scope.Bind(ctx)
		defer cancel()

		var questions []api.InterviewQuestion
		credential, err := p.creds.RequireCredential(ctx)
		if err == nil {
			if mode == GenerateOne {
				err = p.backend.GenerateOneQuestion(ctx, credential, p.jobID)
			} else {
				err = p.backend.GenerateQuestions(ctx, credential, p.jobID)
			}
		}
		if err == nil {
			questions, err = p.backend.ListQuestions(ctx, credential, p.jobID)
		}
		applied := p.apply(func() {
			if err != nil {
				p.questionError = generateFailed
				return
			}
			p.questions = questions
		})
		if !applied {
			return resource.ErrUnmounted
		}
		return err
	})
}

// Practice makes questionID the active question and clears the answer area.
func (p *Page) Practice(questionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasQuestionLocked(questionID) {
		return ErrUnknownQuestion
	}
	p.activeID, p.draft, p.result, p.answerError = questionID, "", nil, ""
	return nil
}

func (p *Page) hasQuestionLocked(id string) bool {
	for _, q := range p.questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

// Submit grades answer for questionID, or for the active question when
// questionID is empty. The question must be one shown on the page and becomes
// the active one. Blank answers and submissions past the ceiling never reach
// the backend.
func (p *Page) Submit(ctx context.Context, questionID, answer string) error {
	p.mu.Lock()
	if questionID == "" {
		questionID = p.activeID
	}
	if questionID != "" && !p.hasQuestionLocked(questionID) {
		p.mu.Unlock()
		return ErrUnknownQuestion
	}
	if questionID != p.activeID {
		p.activeID, p.result, p.answerError = questionID, nil, ""
	}
	p.draft = answer
	limited := p.practiced >= p.limit
	p.mu.Unlock()

	if strings.TrimSpace(answer) == "" || questionID == "" {
		return ErrEmptyAnswer
	}
	if limited {
		metrics.IncPracticeLimited()
		return ErrPracticeLimit
	}

	return p.submit.Run(func() error {
		p.apply(func() { p.result, p.answerError = nil, "" })
		ctx, cancel := p.scope.Bind(ctx)
		defer cancel()

		credential, err := p.creds.RequireCredential(ctx)
		var result api.AnswerResult
		if err == nil {
			result, err = p.backend.SubmitAnswer(ctx, credential, api.SubmitAnswerRequest{QuestionID: questionID, Answer: answer})
		}
		applied := p.apply(func() {
			if err != nil {
				p.answerError = submitFailed
				return
			}
			p.result = &result
			p.practiced++
		})
		if !applied {
			return resource.ErrUnmounted
		}
		return err
	})
}

func (p *Page) apply(fn func()) bool {
	return p.scope.Apply(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		fn()
	})
}

// View is the rendered job detail page.
type View struct {
	State resource.State `json:"state"`
	Job   *api.Job       `json:"job,omitempty"`
	Error string         `json:"error,omitempty"`

	ATS        *api.ATSResult `json:"ats,omitempty"`
	ATSRunning bool           `json:"atsRunning"`
	ATSError   string         `json:"atsError,omitempty"`

	Questions     []api.InterviewQuestion `json:"questions"`
	CanGenerate   bool                    `json:"canGenerate"`
	Generating    bool                    `json:"generating"`
	QuestionError string                  `json:"questionError,omitempty"`

	ActiveQuestionID string            `json:"activeQuestionId,omitempty"`
	AnswerDraft      string            `json:"answerDraft,omitempty"`
	AnswerResult     *api.AnswerResult `json:"answerResult,omitempty"`
	Submitting       bool              `json:"submitting"`
	AnswerError      string            `json:"answerError,omitempty"`

	PracticeCount int    `json:"practiceCount"`
	PracticeLimit int    `json:"practiceLimit"`
	LimitMessage  string `json:"limitMessage,omitempty"`
}

func (p *Page) View() View {
	state, job, _ := p.job.Get()
	view := View{State: state}
	switch state {
	case resource.Ready:
		view.Job = &job
	case resource.Failed:
		view.Error = loadFailed
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	view.ATS = p.ats
	view.ATSRunning = p.runATS.Running()
	view.ATSError = p.atsError
	view.Questions = append([]api.InterviewQuestion{}, p.questions...)
	view.Generating = p.generate.Running()
	view.CanGenerate = len(p.questions) == 0 && !view.Generating
	view.QuestionError = p.questionError
	view.ActiveQuestionID = p.activeID
	view.AnswerDraft = p.draft
	view.AnswerResult = p.result
	view.Submitting = p.submit.Running()
	view.AnswerError = p.answerError
	view.PracticeCount = p.practiced
	view.PracticeLimit = p.limit
	if p.practiced >= p.limit {
		view.LimitMessage = limitReached
	}
	return view
}
