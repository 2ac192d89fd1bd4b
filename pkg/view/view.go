package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/client"
	"github.com/m-mizutani/sortinghat/pkg/frame"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
)

type State string

const (
	StateAwaitingIdentity State = "awaiting-identity"
	StateFetching         State = "fetching"
	StateReady            State = "ready"
	StateError            State = "error"
)

const (
	DefaultStatusTTL = 5 * time.Second
	maxStatusLength  = 80

	StatusSharing = "Sharing..."
	StatusShared  = "Shared!"
)

var (
	ErrStaleResult     = goerr.New("result belongs to a replaced identifier")
	ErrMissingAnalysis = goerr.New("Missing Hogwarts analysis.")
	ErrNotReady        = goerr.New("no sorting result to share")
)

// API is the server side of the view
type API interface {
	GetUser(ctx context.Context, fid model.FID) (*model.UserSorting, error)
	CreateShareLink(ctx context.Context, req *model.ShareRequest) (*model.ShareLink, error)
}

// Ticket identifies one fetch pipeline. Results of a ticket whose generation
// is no longer current are dropped.
type Ticket struct {
	generation uint64
	fid        model.FID
}

func (t Ticket) FID() model.FID {
	return t.fid
}

// Snapshot is an immutable copy of the view state for rendering
type Snapshot struct {
	State  State
	FID    model.FID
	User   *model.UserSorting
	Error  string
	Status string
}

// View holds the interactive result state of one user session
type View struct {
	api       API
	host      frame.Host
	statusTTL time.Duration

	mu         sync.Mutex
	state      State
	generation uint64
	fid        model.FID
	user       *model.UserSorting
	errMsg     string
	status     string
	statusGen  uint64
}

type Option func(*View)

// WithStatusTTL sets how long a share status stays visible
func WithStatusTTL(d time.Duration) Option {
	return func(v *View) {
		v.statusTTL = d
	}
}

func New(api API, host frame.Host, opts ...Option) *View {
	v := &View{
		api:       api,
		host:      host,
		statusTTL: DefaultStatusTTL,
		state:     StateAwaitingIdentity,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Snapshot returns the current state
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{
		State:  v.state,
		FID:    v.fid,
		User:   v.user,
		Error:  v.errMsg,
		Status: v.status,
	}
}

// SetFID switches the view to fid. Profile, sorting, error and share status
// are reset and any in-flight result of a previous identifier becomes stale.
func (v *View) SetFID(fid model.FID) Ticket {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.generation++
	v.fid = fid
	v.state = StateFetching
	v.user = nil
	v.errMsg = ""
	v.status = ""
	v.statusGen++

	return Ticket{generation: v.generation, fid: fid}
}

// Fail moves the view into the error state, e.g. when no identity was found
func (v *View) Fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateError
	v.errMsg = errorMessage(err)
}

// Fetch loads the sorting of the ticket's FID. It returns ErrStaleResult
// without touching the state when the identifier changed meanwhile.
func (v *View) Fetch(ctx context.Context, ticket Ticket) error {
	logger := logging.From(ctx).With("fid", ticket.fid)

	user, err := v.api.GetUser(ctx, ticket.fid)
	if err == nil && user.Hogwarts == nil {
		err = ErrMissingAnalysis
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if ticket.generation != v.generation {
		logger.Debug("drop stale result", "current_fid", v.fid)
		return ErrStaleResult
	}

	if err != nil {
		logger.Error("failed to fetch analysis data", "error", err)
		v.state = StateError
		v.errMsg = errorMessage(err)
		return err
	}

	v.state = StateReady
	v.user = user
	return nil
}

// Load is SetFID followed by Fetch
func (v *View) Load(ctx context.Context, fid model.FID) error {
	return v.Fetch(ctx, v.SetFID(fid))
}

// Share creates a share link of the current result and opens a compose
// intent. The outcome is reported as a transient status. A share that settles
// after the identifier changed leaves the new view untouched.
func (v *View) Share(ctx context.Context) error {
	v.mu.Lock()
	fid, user, gen := v.fid, v.user, v.generation
	v.mu.Unlock()

	if fid == 0 || user == nil || user.Hogwarts == nil {
		return v.shareFailed(ctx, gen, ErrNotReady)
	}

	v.setStatus(gen, StatusSharing)

	house := user.Hogwarts.PrimaryHouse
	link, err := v.api.CreateShareLink(ctx, &model.ShareRequest{
		House:       house,
		DisplayName: user.Profile().Name(),
		PfpURL:      user.PfpURL,
		FID:         fid,
	})
	if err != nil {
		return v.shareFailed(ctx, gen, err)
	}

	text := fmt.Sprintf("I'm a %s! What house are you?", house)
	if err := frame.Compose(ctx, v.host, text, link.ShareablePageURL); err != nil {
		return v.shareFailed(ctx, gen, err)
	}

	if token, ok := v.setStatus(gen, StatusShared); ok {
		v.scheduleClear(gen, token)
	}
	return nil
}

func (v *View) shareFailed(ctx context.Context, gen uint64, err error) error {
	logging.From(ctx).Error("failed to share", "error", err)
	if token, ok := v.setStatus(gen, truncate("Share failed: "+errorMessage(err), maxStatusLength)); ok {
		v.scheduleClear(gen, token)
	}
	return err
}

// setStatus writes s unless the identifier changed since gen. It returns the
// token of the written status, which voids clears scheduled for older ones.
func (v *View) setStatus(gen uint64, s string) (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return 0, false
	}
	v.status = s
	v.statusGen++
	return v.statusGen, true
}

// scheduleClear clears the status after statusTTL if it is still the one of
// token
func (v *View) scheduleClear(gen, token uint64) {
	time.AfterFunc(v.statusTTL, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.statusGen == token && v.generation == gen {
			v.status = ""
		}
	})
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
