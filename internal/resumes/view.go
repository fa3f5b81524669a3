package resumes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ledongthuc/pdf"

	"jobcoach-web/internal/api"
	"jobcoach-web/internal/authstate"
	"jobcoach-web/internal/resource"
)

const (
	uploaded        = "Resume uploaded successfully"
	uploadFailed    = "Upload failed"
	notAuthed       = "Not authenticated"
	choosePDF       = "Please choose a PDF file"
	loadFailed      = "Failed to load resumes"
	uploadDateStyle = "Jan 2, 2006"

	defaultUploadName = "resume.pdf"
)

var (
	// ErrNoFile is returned when the form carried no file.
	ErrNoFile = errors.New("no file selected")
	// ErrNotPDF is returned when the file does not parse as a PDF.
	ErrNotPDF = errors.New("file is not a PDF")
	// ErrTooLarge is returned when the file exceeds the upload limit.
	ErrTooLarge = errors.New("file too large")
)

type Backend interface {
	ListResumes(ctx context.Context, credential string) ([]api.Resume, error)
	UploadResume(ctx context.Context, credential, fileName string, r io.Reader) error
}

type Credentials interface {
	RequireCredential(ctx context.Context) (string, error)
}

// File is an upload read fully into memory.
type File struct {
	Name string
	Data []byte
}

type Page struct {
	scope   *resource.Scope
	resumes resource.Resource[[]api.Resume]
	upload  resource.Action

	mu      sync.Mutex
	message string
	success bool
}

// NewPage builds the resume panel for a mounted scope. The dashboard embeds
// one alongside its own resources.
func NewPage(scope *resource.Scope) *Page {
	return &Page{scope: scope}
}

func (p *Page) Load(ctx context.Context, backend Backend, creds Credentials) error {
	return resource.Load(ctx, p.scope, &p.resumes, func(ctx context.Context) ([]api.Resume, error) {
		credential, err := creds.RequireCredential(ctx)
		if err != nil {
			return nil, err
		}
		return backend.ListResumes(ctx, credential)
	})
}

// Upload checks that f is a PDF, forwards it and reloads the list.
func (p *Page) Upload(ctx context.Context, backend Backend, creds Credentials, f File) error {
	return p.upload.Run(func() error {
		p.setMessage("", false)

		if err := checkPDF(f); err != nil {
			p.setMessage(choosePDF, false)
			return err
		}

		ctx, cancel := p.scope.Bind(ctx)
		defer cancel()
		credential, err := creds.RequireCredential(ctx)
		if err != nil {
			p.setMessage(notAuthed, false)
			return err
		}
		if err := backend.UploadResume(ctx, credential, f.Name, bytes.NewReader(f.Data)); err != nil {
			p.setMessage(uploadFailed, false)
			return err
		}
		if !p.setMessage(uploaded, true) {
			return resource.ErrUnmounted
		}
		return p.Load(ctx, backend, creds)
	})
}

// Reject records a failure detected before the file was read.
func (p *Page) Reject(err error) {
	if errors.Is(err, ErrTooLarge) {
		p.setMessage(uploadFailed, false)
		return
	}
	p.setMessage(choosePDF, false)
}

func (p *Page) setMessage(msg string, success bool) bool {
	return p.scope.Apply(func() {
		p.mu.Lock()
		p.message, p.success = msg, success
		p.mu.Unlock()
	})
}

// checkPDF parses the document header, cross-reference table and page tree.
// The parser panics on some malformed input.
func checkPDF(f File) (err error) {
	if len(f.Data) == 0 {
		return ErrNoFile
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(f.Data), int64(len(f.Data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if r.NumPage() == 0 {
		return fmt.Errorf("%w: no pages", ErrNotPDF)
	}
	return nil
}

// uploadName strips directories from a browser-supplied file name and falls
// back to a fixed name when nothing usable is left.
func uploadName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || strings.Contains(name, "..") {
		return defaultUploadName
	}
	return name
}

// Row is one uploaded resume as listed.
type Row struct {
	ID         string `json:"id"`
	UploadedOn string `json:"uploadedOn"`
}

type View struct {
	State     resource.State `json:"state"`
	Resumes   []Row          `json:"resumes"`
	Error     string         `json:"error,omitempty"`
	Message   string         `json:"message,omitempty"`
	Success   bool           `json:"success"`
	Uploading bool           `json:"uploading"`
}

func (p *Page) View() View {
	state, list, err := p.resumes.Get()
	view := View{State: state, Resumes: make([]Row, 0, len(list)), Uploading: p.upload.Running()}
	for _, r := range list {
		view.Resumes = append(view.Resumes, Row{ID: r.ID, UploadedOn: uploadDate(r.CreatedAt)})
	}
	if state == resource.Failed {
		view.Error = loadFailed
		if errors.Is(err, authstate.ErrNotAuthenticated) {
			view.Error = notAuthed
		}
	}
	p.mu.Lock()
	view.Message, view.Success = p.message, p.success
	p.mu.Unlock()
	return view
}

// uploadDate renders a backend timestamp as a date, or returns it unchanged
// when it does not parse.
func uploadDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(uploadDateStyle)
		}
	}
	return raw
}
