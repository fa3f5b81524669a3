package reports

import (
	"context"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"jobcoach-web/internal/api"
	"jobcoach-web/internal/resource"
)

const loadFailed = "Could not load reports"

type Backend interface {
	ReportsOverview(ctx context.Context, credential string) (api.Overview, error)
	ATSProgress(ctx context.Context, credential string) ([]api.ATSProgressItem, error)
	WeakAreas(ctx context.Context, credential string) ([]api.WeakArea, error)
}

type Credentials interface {
	RequireCredential(ctx context.Context) (string, error)
}

// Report is the combined result of the three report endpoints.
type Report struct {
	Overview  api.Overview
	Progress  []api.ATSProgressItem
	WeakAreas []api.WeakArea
}

type Page struct {
	scope  *resource.Scope
	report resource.Resource[Report]
}

func newPage(scope *resource.Scope) *Page {
	return &Page{scope: scope}
}

// Load fetches all three reports concurrently. Any failure fails the page.
func (p *Page) Load(ctx context.Context, backend Backend, creds Credentials) error {
	return resource.Load(ctx, p.scope, &p.report, func(ctx context.Context) (Report, error) {
		credential, err := creds.RequireCredential(ctx)
		if err != nil {
			return Report{}, err
		}

		var report Report
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			report.Overview, err = backend.ReportsOverview(ctx, credential)
			return err
		})
		g.Go(func() error {
			var err error
			report.Progress, err = backend.ATSProgress(ctx, credential)
			return err
		})
		g.Go(func() error {
			var err error
			report.WeakAreas, err = backend.WeakAreas(ctx, credential)
			return err
		})
		if err := g.Wait(); err != nil {
			return Report{}, err
		}
		return report, nil
	})
}

// Summary condenses the ATS score history. Latest is nil without history.
type Summary struct {
	Count   int      `json:"count"`
	Latest  *float64 `json:"latest"`
	Average float64  `json:"average"`
	Best    float64  `json:"best"`
	Worst   float64  `json:"worst"`
}

func summarize(items []api.ATSProgressItem) Summary {
	if len(items) == 0 {
		return Summary{}
	}
	scores := make([]float64, len(items))
	var total float64
	for i, item := range items {
		scores[i] = item.Score
		total += item.Score
	}
	latest := scores[len(scores)-1]
	return Summary{
		Count:   len(scores),
		Latest:  &latest,
		Average: roundHalfUp(total / float64(len(scores))),
		Best:    slices.Max(scores),
		Worst:   slices.Min(scores),
	}
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(v float64) float64 { return math.Floor(v + 0.5) }

type View struct {
	State     resource.State        `json:"state"`
	Error     string                `json:"error,omitempty"`
	Overview  *api.Overview         `json:"overview,omitempty"`
	ATS       Summary               `json:"ats"`
	Progress  []api.ATSProgressItem `json:"progress"`
	WeakAreas []string              `json:"weakAreas"`
}

func (p *Page) View() View {
	state, report, _ := p.report.Get()
	view := View{State: state, Progress: []api.ATSProgressItem{}, WeakAreas: []string{}}
	switch state {
	case resource.Failed:
		view.Error = loadFailed
	case resource.Ready:
		view.Overview = &report.Overview
		view.ATS = summarize(report.Progress)
		view.Progress = append(view.Progress, report.Progress...)
		for _, w := range report.WeakAreas {
			view.WeakAreas = append(view.WeakAreas, w.Skill)
		}
	}
	return view
}
