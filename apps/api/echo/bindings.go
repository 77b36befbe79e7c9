package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	SchoolPINRequest struct {
		PIN string `json:"pin" validate:"required,notblank"`
	}
)

func (req *LoginRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	req.Email = core.CleanString(req.Email, true /* lower */)
	if err := validate.Struct(req); err != nil {
		return core.TranslateValidationErrors(err, translator)
	}
	return nil
}

func (req *SchoolPINRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	req.PIN = core.CleanString(req.PIN)
	if err := validate.Struct(req); err != nil {
		return core.TranslateValidationErrors(err, translator)
	}
	return nil
}

var errInvalidRecord = errors.New("invalid attendance record")

// checkAttendance rejects records with a malformed date or status.
func checkAttendance(dates []string, statuses []school.AttendanceStatus, prefix string) error {
	var fields []core.FieldError
	for i := range dates {
		if !core.IsValidDate(dates[i]) {
			fields = append(fields, core.FieldError{Field: fmt.Sprintf("%s[%d].date", prefix, i), Error: "date must be YYYY-MM-DD"})
		}
		if !statuses[i].Valid() {
			fields = append(fields, core.FieldError{Field: fmt.Sprintf("%s[%d].status", prefix, i), Error: "status must be Present or Absent"})
		}
	}
	if len(fields) > 0 {
		return core.NewValidationError(errInvalidRecord, fields...)
	}
	return nil
}

// checkRecord validates a record against the rules applied when a school is loaded.
func (api *schoolApi) checkRecord(rec interface{}, prefix ...string) error {
	if err := api.validate.Struct(rec); err != nil {
		return core.TranslateValidationErrors(err, api.translator, prefix...)
	}
	return nil
}

var binder = &echo.DefaultBinder{}

// bindBody binds the request body only. Path params never leak into the payload.
func bindBody(ctx echo.Context, v interface{}) error {
	if err := binder.BindBody(ctx, v); err != nil {
		if he, ok := err.(*echo.HTTPError); ok && he.Code == http.StatusBadRequest {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed JSON body").SetInternal(err)
		}
		return err
	}
	return nil
}
