package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/application/workflow"
	"github.com/garyjia/leave-approval/internal/domain/entity"
	domainwf "github.com/garyjia/leave-approval/internal/domain/workflow"
)

// Error codes returned in the response envelope
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidState  = "INVALID_STATE"
	CodeConflict      = "CONFLICT"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError is an error with a stable code and the HTTP status it maps to
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Fields     []entity.FieldError
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

var registerTagNames sync.Once

// RegisterTagNames makes gin's validator report fields by their json name
func RegisterTagNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// toAppError maps service and binding errors onto the envelope codes
func toAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &AppError{
			Code:       CodeInvalidInput,
			Message:    "validation failed",
			HTTPStatus: http.StatusBadRequest,
			Fields:     fieldErrors(verrs),
			Err:        err,
		}
	}

	var domainErr *entity.ValidationError
	if errors.As(err, &domainErr) {
		return &AppError{
			Code:       CodeInvalidInput,
			Message:    "validation failed",
			HTTPStatus: http.StatusBadRequest,
			Fields:     domainErr.Fields,
			Err:        err,
		}
	}

	if isMalformed(err) {
		return &AppError{
			Code:       CodeInvalidInput,
			Message:    "malformed request",
			HTTPStatus: http.StatusBadRequest,
			Err:        err,
		}
	}

	switch {
	case errors.Is(err, entity.ErrNotFound):
		return &AppError{Code: CodeNotFound, Message: err.Error(), HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, domainwf.ErrInvalidTransition):
		return &AppError{Code: CodeInvalidState, Message: err.Error(), HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, port.ErrConcurrentUpdate):
		return &AppError{
			Code:       CodeConflict,
			Message:    "leave request is being changed by another action, retry",
			HTTPStatus: http.StatusConflict,
			Err:        err,
		}
	}

	return &AppError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// withDraftFields adds the domain's field errors that binding did not report,
// so one response lists every failing field
func withDraftFields(err error, draft entity.LeaveDraft) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	appErr := toAppError(err)
	var domainErr *entity.ValidationError
	if !errors.As(draft.Validate(), &domainErr) {
		return appErr
	}

	seen := make(map[string]bool, len(appErr.Fields))
	for _, f := range appErr.Fields {
		seen[f.Field] = true
	}
	for _, f := range domainErr.Fields {
		if !seen[f.Field] {
			appErr.Fields = append(appErr.Fields, f)
			seen[f.Field] = true
		}
	}
	return appErr
}

func isMalformed(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var numErr *strconv.NumError
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.As(err, &numErr) ||
		errors.Is(err, entity.ErrInvalidDate) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func fieldErrors(verrs validator.ValidationErrors) []entity.FieldError {
	out := make([]entity.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, entity.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}

// respondError writes the envelope for err
func respondError(c *gin.Context, err error) {
	appErr := toAppError(err)
	c.JSON(appErr.HTTPStatus, Response{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
		Fields:  appErr.Fields,
	})
}
