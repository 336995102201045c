// Package listpage holds the state of a unit list page: the query, the rows
// last loaded, and the one dialog that may be open over them.
//
// A View is driven by discrete calls (load, filter, page, open a dialog,
// submit) and is safe for overlapping calls. Loads are numbered; a newer
// load cancels the one in flight and a superseded result is discarded.
package listpage

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/unitdesk/unitdesk/internal/errors"
	"github.com/unitdesk/unitdesk/internal/logging"
	"github.com/unitdesk/unitdesk/internal/unit"
)

// Client is the remote data client a view reads and writes through.
// *unitapi.Client satisfies it.
type Client interface {
	List(ctx context.Context, q unit.Query) (*unit.Page, error)
	Create(ctx context.Context, f unit.Fields) (*unit.Outcome, error)
	Update(ctx context.Context, id string, p unit.Patch) (*unit.Outcome, error)
	Delete(ctx context.Context, id string) (*unit.Outcome, error)
}

// View is the state of one page view.
type View struct {
	id     string
	client Client
	log    zerolog.Logger

	// ctx lives as long as the view; closing it cancels every request.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	query      unit.Query
	loading    bool
	units      []unit.Unit
	total      int
	totalPages int
	dialog     Dialog
	form       Form
	busy       bool
	deleting   bool

	gen        uint64
	cancelLoad context.CancelFunc
}

// NewView returns a view over client starting at q. The view stays loading
// until its first Load.
func NewView(id string, client Client, q unit.Query, log zerolog.Logger) *View {
	ctx, cancel := context.WithCancel(context.Background())
	return &View{
		id:      id,
		client:  client,
		log:     log.With().Str("view", id).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		query:   q.Normalize(),
		loading: true,
	}
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// Close cancels the view's in-flight requests.
func (v *View) Close() { v.cancel() }

// Query returns the query the next load will send.
func (v *View) Query() unit.Query {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// Load fetches the current page. It reports whether its result was applied;
// a load superseded by a newer one is not. A failed load keeps the previous
// rows and raises a failure status.
func (v *View) Load(ctx context.Context) bool {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	if v.cancelLoad != nil {
		v.cancelLoad()
	}
	lctx, release := v.requestContext(ctx)
	v.cancelLoad = release
	q := v.query
	v.loading = true
	v.mu.Unlock()

	page, err := v.client.List(lctx, q)
	canceled := lctx.Err() != nil
	release()

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		v.log.Debug().Uint64("gen", gen).Msg("discarding superseded load")
		return false
	}
	v.cancelLoad = nil
	v.loading = false

	if err != nil {
		if canceled {
			return false
		}
		logging.For(ctx, v.log).Warn().Err(err).Int("page", q.Page).Msg("load units failed")
		if !(v.dialog.Kind == ShowingStatus && v.dialog.loadFailure) {
			v.dialog = statusOver(v.dialog, TitleFailed, MsgLoadFailed, false)
			v.dialog.loadFailure = true
		}
		return true
	}

	v.units = page.Content
	v.total = page.Total
	v.totalPages = page.Pages()
	return true
}

// requestContext derives a load context that ends with either the view or
// the caller's request, and carries the caller's request id.
func (v *View) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	lctx, cancel := context.WithCancel(v.ctx)
	lctx = logging.WithRequestID(lctx, logging.RequestID(ctx))
	stop := context.AfterFunc(ctx, cancel)
	return lctx, func() {
		stop()
		cancel()
	}
}

// mutationContext outlives the caller's request so a started write is not
// abandoned by a dropped connection. It still ends with the view.
func (v *View) mutationContext(ctx context.Context) context.Context {
	return logging.WithRequestID(v.ctx, logging.RequestID(ctx))
}

// SetFilters replaces the name and status filters, resets to page 1 and
// loads. status may be "all" or empty for no filter. An unknown status
// changes nothing.
func (v *View) SetFilters(ctx context.Context, name, status string) error {
	st, err := unit.NormalizeStatusFilter(status)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.query.Name = name
	v.query.Status = st
	v.query.Page = 1
	v.mu.Unlock()
	v.Load(ctx)
	return nil
}

// SetNameFilter replaces the name filter, resets to page 1 and loads.
func (v *View) SetNameFilter(ctx context.Context, name string) {
	v.mu.Lock()
	v.query.Name = name
	v.query.Page = 1
	v.mu.Unlock()
	v.Load(ctx)
}

// SetStatusFilter replaces the status filter, resets to page 1 and loads.
func (v *View) SetStatusFilter(ctx context.Context, status string) error {
	st, err := unit.NormalizeStatusFilter(status)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.query.Status = st
	v.query.Page = 1
	v.mu.Unlock()
	v.Load(ctx)
	return nil
}

// SetPageSize changes the page size, resets to page 1 and loads.
func (v *View) SetPageSize(ctx context.Context, size int) error {
	if size <= 0 || size > unit.MaxPageSize {
		return errors.NewInvalidRequest("page size must be between 1 and 100")
	}
	v.mu.Lock()
	v.query.PageSize = size
	v.query.Page = 1
	v.mu.Unlock()
	v.Load(ctx)
	return nil
}

// PrevPage moves back one page and loads. At page 1 it does nothing and
// reports false.
func (v *View) PrevPage(ctx context.Context) bool {
	v.mu.Lock()
	if !v.pageLocked().HasPrev(v.query.Page) {
		v.mu.Unlock()
		return false
	}
	v.query.Page--
	v.mu.Unlock()
	v.Load(ctx)
	return true
}

// NextPage moves forward one page and loads. On the last page it does
// nothing and reports false.
func (v *View) NextPage(ctx context.Context) bool {
	v.mu.Lock()
	if !v.pageLocked().HasNext(v.query.Page) {
		v.mu.Unlock()
		return false
	}
	v.query.Page++
	v.mu.Unlock()
	v.Load(ctx)
	return true
}

func (v *View) pageLocked() *unit.Page {
	return &unit.Page{Size: v.query.PageSize, Total: v.total, TotalPages: v.totalPages}
}

// OpenCreate opens the editor with a blank form.
func (v *View) OpenCreate() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.idleLocked(); err != nil {
		return err
	}
	v.dialog = Dialog{Kind: Creating}
	v.form = Form{}
	return nil
}

// OpenEdit opens the editor for the listed unit id, seeded from its row.
func (v *View) OpenEdit(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.idleLocked(); err != nil {
		return err
	}
	u, err := v.rowLocked(id)
	if err != nil {
		return err
	}
	v.dialog = Dialog{Kind: Editing, Unit: &u}
	v.form = FormFrom(u)
	return nil
}

// OpenDelete asks for confirmation before deleting the listed unit id.
func (v *View) OpenDelete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.idleLocked(); err != nil {
		return err
	}
	u, err := v.rowLocked(id)
	if err != nil {
		return err
	}
	v.dialog = Dialog{Kind: ConfirmingDelete, Unit: &u}
	return nil
}

func (v *View) idleLocked() error {
	if v.dialog.Kind != Idle {
		return errors.NewInvalidRequest("another dialog is open: " + v.dialog.Kind.String())
	}
	return nil
}

func (v *View) rowLocked(id string) (unit.Unit, error) {
	for _, u := range v.units {
		if u.ID == id {
			return u, nil
		}
	}
	return unit.Unit{}, errors.NewNotFound(id)
}

// Submit sends the editor form: Update with all three fields when editing,
// Create otherwise. The result is raised as a status dialog over the editor.
// A second submit while one is in flight returns BUSY.
func (v *View) Submit(ctx context.Context, f Form) error {
	v.mu.Lock()
	if v.busy {
		v.mu.Unlock()
		return errors.NewBusy("submit")
	}
	if !v.dialog.IsEditor() {
		v.mu.Unlock()
		return errors.NewInvalidRequest("the editor is not open")
	}
	v.form = f
	fields, err := f.Fields()
	if err != nil {
		v.mu.Unlock()
		return err
	}
	editor := v.dialog.clone()
	v.busy = true
	v.mu.Unlock()

	mctx := v.mutationContext(ctx)
	var out *unit.Outcome
	success := MsgCreated
	if editor.Kind == Editing {
		out, err = v.client.Update(mctx, editor.Unit.ID, unit.PatchFrom(fields))
		success = MsgUpdated
	} else {
		out, err = v.client.Create(mctx, fields)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = false

	switch {
	case err != nil:
		v.dialog = statusOver(editor, TitleError, errorMessage(err), false)
	case !out.Success:
		v.dialog = statusOver(editor, TitleFailed, out.Message, false)
	default:
		v.form = Form{}
		v.dialog = statusOver(editor, TitleSuccess, success, true)
		v.dialog.closesEditor = true
		logging.For(ctx, v.log).Info().Str("result", success).Msg("unit saved")
	}
	return nil
}

// KeepDraft stores f as the open editor's form without sending it. It does
// nothing when no editor is open or a submit is in flight.
func (v *View) KeepDraft(f Form) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.busy || !v.dialog.IsEditor() {
		return
	}
	v.form = f
}

// CloseEditor resets the form, closes the editor and reloads.
func (v *View) CloseEditor(ctx context.Context) error {
	v.mu.Lock()
	if v.busy {
		v.mu.Unlock()
		return errors.NewBusy("submit")
	}
	v.form = Form{}
	if v.dialog.IsEditor() {
		v.dialog = Dialog{}
	}
	v.mu.Unlock()
	v.Load(ctx)
	return nil
}

// ConfirmDelete deletes the unit under confirmation. On success the dialog
// closes and the page reloads; on failure a status is raised whose dismissal
// returns to the confirmation.
func (v *View) ConfirmDelete(ctx context.Context) error {
	v.mu.Lock()
	if v.deleting {
		v.mu.Unlock()
		return errors.NewBusy("delete")
	}
	if v.dialog.Kind != ConfirmingDelete {
		v.mu.Unlock()
		return errors.NewInvalidRequest("no delete is awaiting confirmation")
	}
	confirm := v.dialog.clone()
	v.deleting = true
	v.mu.Unlock()

	out, err := v.client.Delete(v.mutationContext(ctx), confirm.Unit.ID)

	v.mu.Lock()
	v.deleting = false
	if err == nil && out.Success {
		v.dialog = Dialog{}
		v.mu.Unlock()
		logging.For(ctx, v.log).Info().Str("unit", confirm.Unit.ID).Msg("unit deleted")
		v.Load(ctx)
		return nil
	}

	msg := MsgDeleteFailed
	if err == nil && out.Message != "" {
		msg = out.Message
	}
	v.dialog = statusOver(confirm, TitleFailed, msg, false)
	v.mu.Unlock()
	return nil
}

// CancelDelete closes the delete confirmation.
func (v *View) CancelDelete() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.deleting {
		return errors.NewBusy("delete")
	}
	if v.dialog.Kind == ConfirmingDelete {
		v.dialog = Dialog{}
	}
	return nil
}

// DismissStatus closes the status dialog. A successful submit closes the
// editor and reloads; anything else returns to the dialog underneath.
func (v *View) DismissStatus(ctx context.Context) {
	v.mu.Lock()
	if v.dialog.Kind != ShowingStatus {
		v.mu.Unlock()
		return
	}
	if v.dialog.closesEditor {
		v.dialog = Dialog{}
		v.form = Form{}
		v.mu.Unlock()
		v.Load(ctx)
		return
	}
	if v.dialog.Return != nil {
		v.dialog = *v.dialog.Return
	} else {
		v.dialog = Dialog{}
	}
	v.mu.Unlock()
}

func errorMessage(err error) string {
	if e, ok := errors.As(err); ok {
		return e.Message
	}
	return err.Error()
}

// State is a point-in-time copy of a view for rendering.
type State struct {
	ID           string
	Page         int
	PageSize     int
	Name         string
	StatusFilter string
	Loading      bool
	Units        []unit.Unit
	Total        int
	TotalPages   int
	CanPrev      bool
	CanNext      bool
	Dialog       Dialog
	Form         Form
	Busy         bool
	Deleting     bool
}

// State returns a copy of the view. Units never exceeds PageSize.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	units := v.units
	if len(units) > v.query.PageSize {
		units = units[:v.query.PageSize]
	}
	statusFilter := string(v.query.Status)
	if statusFilter == "" {
		statusFilter = unit.StatusFilterAll
	}
	p := v.pageLocked()
	return State{
		ID:           v.id,
		Page:         v.query.Page,
		PageSize:     v.query.PageSize,
		Name:         v.query.Name,
		StatusFilter: statusFilter,
		Loading:      v.loading,
		Units:        append([]unit.Unit(nil), units...),
		Total:        v.total,
		TotalPages:   v.totalPages,
		CanPrev:      p.HasPrev(v.query.Page),
		CanNext:      p.HasNext(v.query.Page),
		Dialog:       v.dialog.clone(),
		Form:         v.form,
		Busy:         v.busy,
		Deleting:     v.deleting,
	}
}
