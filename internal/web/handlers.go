package web

import (
	"net/http"

	"github.com/unitdesk/unitdesk/internal/errors"
	"github.com/unitdesk/unitdesk/internal/listpage"
	"github.com/unitdesk/unitdesk/internal/unit"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	views           *listpage.Registry
	renderer        *Renderer
	binder          *binder
	defaultPageSize int
	health          func() map[string]any
	help            []byte
}

// HandleOpen handles GET /units: open a new view and render the page
// shell. The rows are fetched by the page itself once it is shown.
func (h *Handlers) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var q openQuery
	if err := h.binder.query(r, &q); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	status, err := unit.NormalizeStatusFilter(q.Status)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	size := q.Size
	if size == 0 {
		size = h.defaultPageSize
	}

	v := h.views.Open(unit.Query{Page: q.Page, PageSize: size, Name: q.Name, Status: status})
	h.renderUnits(w, r, http.StatusOK, v, "", true)
}

// HandleView handles GET /views/{view}: load and render the full page.
func (h *Handlers) HandleView(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	v.Load(r.Context())
	h.renderUnits(w, r, http.StatusOK, v, "", false)
}

// HandleTable handles GET /views/{view}/table: load and render the workspace.
func (h *Handlers) HandleTable(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	v.Load(r.Context())
	h.renderFragment(w, r, "workspace", v, "")
}

// HandleFilter handles POST /views/{view}/filter.
func (h *Handlers) HandleFilter(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		var f filterForm
		if err := h.binder.post(r, &f); err != nil {
			return err
		}
		return v.SetFilters(r.Context(), f.Name, f.Status)
	})
}

// HandleSize handles POST /views/{view}/size.
func (h *Handlers) HandleSize(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		var f sizeForm
		if err := h.binder.post(r, &f); err != nil {
			return err
		}
		return v.SetPageSize(r.Context(), f.Size)
	})
}

// HandlePrev handles POST /views/{view}/prev.
func (h *Handlers) HandlePrev(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		v.PrevPage(r.Context())
		return nil
	})
}

// HandleNext handles POST /views/{view}/next.
func (h *Handlers) HandleNext(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		v.NextPage(r.Context())
		return nil
	})
}

// HandleNew handles POST /views/{view}/units/new.
func (h *Handlers) HandleNew(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		return v.OpenCreate()
	})
}

// HandleEdit handles POST /views/{view}/units/{id}/edit.
func (h *Handlers) HandleEdit(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		return v.OpenEdit(r.PathValue("id"))
	})
}

// HandleAskDelete handles POST /views/{view}/units/{id}/delete.
func (h *Handlers) HandleAskDelete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		return v.OpenDelete(r.PathValue("id"))
	})
}

// HandleSubmit handles POST /views/{view}/editor. A form the editor cannot
// send is shown again with the reason instead of an error page.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}

	var f editorForm
	err := h.binder.post(r, &f)
	if err == nil {
		err = v.Submit(r.Context(), f.toForm())
	} else {
		v.KeepDraft(f.toForm())
	}
	if errors.Is(err, errors.ErrInvalidRequest) && v.State().Dialog.IsEditor() {
		e, _ := errors.As(err)
		if isHTMX(r) {
			h.renderFragment(w, r, "results", v, e.Message)
			return
		}
		h.renderUnits(w, r, http.StatusUnprocessableEntity, v, e.Message, false)
		return
	}
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, v)
}

// HandleCloseEditor handles POST /views/{view}/editor/close.
func (h *Handlers) HandleCloseEditor(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		return v.CloseEditor(r.Context())
	})
}

// HandleConfirmDelete handles POST /views/{view}/delete/confirm.
func (h *Handlers) HandleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		return v.ConfirmDelete(r.Context())
	})
}

// HandleCancelDelete handles POST /views/{view}/delete/cancel.
func (h *Handlers) HandleCancelDelete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		return v.CancelDelete()
	})
}

// HandleDismissStatus handles POST /views/{view}/status/dismiss.
func (h *Handlers) HandleDismissStatus(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(v *listpage.View) error {
		v.DismissStatus(r.Context())
		return nil
	})
}

// HandleHelp handles GET /help: the operator guide.
func (h *Handlers) HandleHelp(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "help", HelpPageData{
		PageData: h.renderer.page("Help", "help"),
		Body:     renderMarkdown(h.help),
	})
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "views": h.views.Len()}
	if h.health != nil {
		for k, v := range h.health() {
			body[k] = v
		}
	}
	renderJSON(w, http.StatusOK, body)
}

// act resolves the view, applies fn and answers with the updated page.
func (h *Handlers) act(w http.ResponseWriter, r *http.Request, fn func(v *listpage.View) error) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	if err := fn(v); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, v)
}

// respond renders the results region for htmx and redirects everything else
// back to the view.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, v *listpage.View) {
	if isHTMX(r) {
		h.renderFragment(w, r, "results", v, "")
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, v.State())
		return
	}
	http.Redirect(w, r, "/views/"+v.ID(), http.StatusSeeOther)
}

func (h *Handlers) view(w http.ResponseWriter, r *http.Request) (*listpage.View, bool) {
	v, err := h.views.Get(r.PathValue("view"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return nil, false
	}
	return v, true
}

func (h *Handlers) renderUnits(w http.ResponseWriter, r *http.Request, status int, v *listpage.View, formError string, autoLoad bool) {
	data := h.unitsData(v, formError)
	data.AutoLoad = autoLoad
	h.renderer.renderPageStatus(w, r, status, "units", data)
}

// renderFragment renders one block of the units page for an htmx swap.
func (h *Handlers) renderFragment(w http.ResponseWriter, r *http.Request, block string, v *listpage.View, formError string) {
	data := h.unitsData(v, formError)
	data.Fragment = true
	h.renderer.renderBlock(w, r, http.StatusOK, "units", block, data)
}

func (h *Handlers) unitsData(v *listpage.View, formError string) UnitsPageData {
	return UnitsPageData{
		PageData:  h.renderer.page("Units", "units"),
		View:      v.State(),
		FormError: formError,
		Types:     unit.Types(),
		Statuses:  unit.Statuses(),
		PageSizes: unit.PageSizeOptions,
	}
}
