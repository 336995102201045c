package web

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/unitdesk/unitdesk/internal/errors"
	"github.com/unitdesk/unitdesk/internal/listpage"
	"github.com/unitdesk/unitdesk/internal/unit"
)

// openQuery seeds a new view from the /units query string.
type openQuery struct {
	Page   int    `form:"page" validate:"gte=0"`
	Size   int    `form:"size" validate:"gte=0,lte=100"`
	Name   string `form:"name" validate:"max=200"`
	Status string `form:"status" validate:"omitempty,status_filter"`
}

type filterForm struct {
	Name   string `form:"name" validate:"max=200"`
	Status string `form:"status" validate:"omitempty,status_filter"`
}

type sizeForm struct {
	Size int `form:"size" validate:"required,oneof=5 10 20 25 50 100"`
}

type editorForm struct {
	Name   string `form:"name" validate:"max=200"`
	Type   string `form:"type" validate:"required,unit_type"`
	Status string `form:"status" validate:"required,unit_status"`
}

func (f editorForm) toForm() listpage.Form {
	return listpage.Form{Name: f.Name, Type: f.Type, Status: f.Status}
}

// binder decodes and validates form posts and query strings.
type binder struct {
	decoder  *form.Decoder
	validate *validator.Validate
}

func newBinder() (*binder, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	rules := map[string]validator.Func{
		"unit_type": func(fl validator.FieldLevel) bool {
			_, ok := unit.ParseType(fl.Field().String())
			return ok
		},
		"unit_status": func(fl validator.FieldLevel) bool {
			_, ok := unit.ParseStatus(fl.Field().String())
			return ok
		},
		"status_filter": func(fl validator.FieldLevel) bool {
			_, err := unit.NormalizeStatusFilter(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %s validation: %w", tag, err)
		}
	}
	return &binder{decoder: form.NewDecoder(), validate: v}, nil
}

// query binds the URL query into dst.
func (b *binder) query(r *http.Request, dst any) error {
	return b.bind(r.URL.Query(), dst)
}

// post binds the request form body into dst.
func (b *binder) post(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return errors.NewInvalidRequest("invalid form data")
	}
	return b.bind(r.PostForm, dst)
}

func (b *binder) bind(values map[string][]string, dst any) error {
	if err := b.decoder.Decode(dst, values); err != nil {
		return errors.NewInvalidRequest("invalid form data")
	}
	if err := b.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError turns the first field failure into an INVALID_REQUEST
// with a message a person can act on.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.NewInvalidRequest(err.Error())
	}
	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "unit_type":
		msg = field + " must be one of: " + joinTypes()
	case "unit_status":
		msg = field + " must be one of: " + joinStatuses()
	case "status_filter":
		msg = field + " must be all or one of: " + joinStatuses()
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return errors.NewInvalidRequest(msg)
}

func joinTypes() string {
	var parts []string
	for _, t := range unit.Types() {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ", ")
}

func joinStatuses() string {
	var parts []string
	for _, s := range unit.Statuses() {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ", ")
}
