package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"jobcoach-web/internal/api"
	"jobcoach-web/internal/resource"
)

const (
	loadFailed   = "Failed to load jobs"
	createFailed = "Failed to create job"
	deleteFailed = "Failed to delete job"
)

// ErrIncomplete is returned when a job draft is missing a field.
var ErrIncomplete = errors.New("company, role and description are required")

// Backend is the API surface the jobs page uses.
type Backend interface {
	ListJobs(ctx context.Context, credential string) ([]api.Job, error)
	CreateJob(ctx context.Context, credential string, req api.CreateJobRequest) error
	DeleteJob(ctx context.Context, credential, id string) error
}

// Credentials yields the tab's access token.
type Credentials interface {
	RequireCredential(ctx context.Context) (string, error)
}

// Draft is the add-job form. It survives a failed submit.
type Draft struct {
	Company     string `json:"company" form:"company"`
	Role        string `json:"role" form:"role"`
	Description string `json:"description" form:"description"`
}

func (d Draft) request() api.CreateJobRequest {
	return api.CreateJobRequest{
		Company:     strings.TrimSpace(d.Company),
		Role:        strings.TrimSpace(d.Role),
		Description: strings.TrimSpace(d.Description),
	}
}

// Page is the mounted jobs list.
type Page struct {
	scope    *resource.Scope
	pageSize int

	jobs   resource.Resource[[]api.Job]
	create resource.Action

	mu      sync.Mutex
	draft   Draft
	message string
}

func newPage(pageSize int) func(*resource.Scope) *Page {
	if pageSize <= 0 {
		pageSize = 10
	}
	return func(scope *resource.Scope) *Page {
		return &Page{scope: scope, pageSize: pageSize}
	}
}

// Load fetches the job list.
func (p *Page) Load(ctx context.Context, backend Backend, creds Credentials) error {
	return resource.Load(ctx, p.scope, &p.jobs, func(ctx context.Context) ([]api.Job, error) {
		credential, err := creds.RequireCredential(ctx)
		if err != nil {
			return nil, err
		}
		return backend.ListJobs(ctx, credential)
	})
}

// Create submits draft and reloads the list. Incomplete drafts never reach
// the backend; a submit while one is in flight returns resource.ErrBusy.
func (p *Page) Create(ctx context.Context, backend Backend, creds Credentials, draft Draft) error {
	p.setDraft(draft, "")
	req := draft.request()
	if req.Company == "" || req.Role == "" || req.Description == "" {
		return ErrIncomplete
	}

	return p.create.Run(func() error {
		ctx, cancel := p.scope.Bind(ctx)
		defer cancel()

		credential, err := creds.RequireCredential(ctx)
		if err == nil {
			err = backend.CreateJob(ctx, credential, req)
		}
		if err != nil {
			p.scope.Apply(func() { p.setDraft(draft, createFailed) })
			return err
		}
		p.scope.Apply(func() { p.setDraft(Draft{}, "") })
		return p.Load(ctx, backend, creds)
	})
}

// Delete removes the job from the list at once and restores it if the
// backend refuses.
func (p *Page) Delete(ctx context.Context, backend Backend, creds Credentials, id string) error {
	var (
		removed api.Job
		index   = -1
	)
	p.scope.Apply(func() {
		p.setMessage("")
		p.jobs.Update(func(jobs []api.Job) []api.Job {
			index = slices.IndexFunc(jobs, func(j api.Job) bool { return j.ID == id })
			if index < 0 {
				return jobs
			}
			removed = jobs[index]
			return slices.Delete(slices.Clone(jobs), index, index+1)
		})
	})

	ctx, cancel := p.scope.Bind(ctx)
	defer cancel()
	credential, err := creds.RequireCredential(ctx)
	if err == nil {
		err = backend.DeleteJob(ctx, credential, id)
	}
	if err == nil {
		return nil
	}

	p.scope.Apply(func() {
		p.setMessage(deleteFailed)
		if index < 0 {
			return
		}
		p.jobs.Update(func(jobs []api.Job) []api.Job {
			at := min(index, len(jobs))
			return slices.Insert(slices.Clone(jobs), at, removed)
		})
	})
	return fmt.Errorf("delete job %s: %w", id, err)
}

func (p *Page) setDraft(d Draft, message string) {
	p.mu.Lock()
	p.draft, p.message = d, message
	p.mu.Unlock()
}

func (p *Page) setMessage(message string) {
	p.mu.Lock()
	p.message = message
	p.mu.Unlock()
}

// View is the rendered jobs page.
type View struct {
	State      resource.State `json:"state"`
	Jobs       []api.Job      `json:"jobs"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
	Draft      Draft          `json:"draft"`
	Saving     bool           `json:"saving"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// View renders page number pageNum, clamped to the available range.
func (p *Page) View(pageNum int) View {
	state, all, _ := p.jobs.Get()
	p.mu.Lock()
	view := View{State: state, Draft: p.draft, Message: p.message, Saving: p.create.Running()}
	p.mu.Unlock()
	if state == resource.Failed {
		view.Error = loadFailed
	}

	view.Total = len(all)
	view.TotalPages = max(1, (len(all)+p.pageSize-1)/p.pageSize)
	view.Page = min(max(pageNum, 1), view.TotalPages)
	start := (view.Page - 1) * p.pageSize
	end := min(start+p.pageSize, len(all))
	view.Jobs = append([]api.Job{}, all[start:end]...)
	return view
}
