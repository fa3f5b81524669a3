package dashboard

import (
	"context"
	"slices"
	"strings"

	"jobcoach-web/internal/api"
	"jobcoach-web/internal/resource"
	"jobcoach-web/internal/resumes"
)

const loadFailed = "Failed to load dashboard"

// Backend is the API surface the dashboard reads, including the embedded
// resume panel.
type Backend interface {
	ReportsOverview(ctx context.Context, credential string) (api.Overview, error)
	resumes.Backend
}

// Credentials yields the tab's access token.
type Credentials interface {
	RequireCredential(ctx context.Context) (string, error)
}

// Page is the mounted dashboard.
type Page struct {
	scope    *resource.Scope
	overview resource.Resource[api.Overview]
	resume   *resumes.Page
}

func newPage(scope *resource.Scope) *Page {
	return &Page{scope: scope, resume: resumes.NewPage(scope)}
}

// Load fetches the overview once per mount, then the resume list. The resume
// panel is only shown next to a loaded overview, and its failure stays local
// to the panel.
func (p *Page) Load(ctx context.Context, backend Backend, credentials Credentials) error {
	err := resource.Load(ctx, p.scope, &p.overview, func(ctx context.Context) (api.Overview, error) {
		credential, err := credentials.RequireCredential(ctx)
		if err != nil {
			return api.Overview{}, err
		}
		return backend.ReportsOverview(ctx, credential)
	})
	if err != nil {
		return err
	}
	_ = p.resume.Load(ctx, backend, credentials)
	return nil
}

// View is the rendered dashboard.
type View struct {
	State    resource.State `json:"state"`
	User     api.User       `json:"user"`
	Overview *api.Overview  `json:"overview,omitempty"`
	Statuses []StatusCount  `json:"statuses,omitempty"`
	Resume   *resumes.View  `json:"resume,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// StatusCount is one row of the jobs-by-status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

var statusOrder = []api.JobStatus{
	api.JobStatusApplied,
	api.JobStatusScreening,
	api.JobStatusInterview,
	api.JobStatusOffer,
	api.JobStatusRejected,
}

func (p *Page) View(user api.User) View {
	state, overview, _ := p.overview.Get()
	view := View{State: state, User: user}
	switch state {
	case resource.Ready:
		view.Overview = &overview
		view.Statuses = breakdown(overview.JobsByStatus)
		resume := p.resume.View()
		view.Resume = &resume
	case resource.Failed:
		view.Error = loadFailed
	}
	return view
}

// breakdown lists known statuses first, then anything else the backend reports.
func breakdown(byStatus map[string]int) []StatusCount {
	out := make([]StatusCount, 0, len(byStatus))
	seen := make(map[string]bool, len(statusOrder))
	for _, s := range statusOrder {
		seen[string(s)] = true
		if n, ok := byStatus[string(s)]; ok {
			out = append(out, StatusCount{Status: string(s), Count: n})
		}
	}
	var extra []StatusCount
	for s, n := range byStatus {
		if !seen[s] {
			extra = append(extra, StatusCount{Status: s, Count: n})
		}
	}
	slices.SortFunc(extra, func(a, b StatusCount) int { return strings.Compare(a.Status, b.Status) })
	return append(out, extra...)
}
