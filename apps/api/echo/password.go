package echoapi

import (
	"net/http"
	"net/mail"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

type (
	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	PasswordResetConfirm struct {
		Email           string `json:"email" validate:"required,email"`
		Token           string `json:"token" validate:"required,notblank"`
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	}
)

func (req *PasswordResetRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	req.Email = core.CleanString(req.Email, true /* lower */)
	if err := validate.Struct(req); err != nil {
		return core.TranslateValidationErrors(err, translator)
	}
	return nil
}

func (req *PasswordResetConfirm) Validate(validate *validator.Validate, translator ut.Translator) error {
	req.Email = core.CleanString(req.Email, true /* lower */)
	req.Token = core.CleanString(req.Token)
	if err := validate.Struct(req); err != nil {
		return core.TranslateValidationErrors(err, translator)
	}
	return nil
}

// requestPasswordReset emails a reset code to the coordinator.
// Unknown emails get the same response.
func (api *schoolApi) requestPasswordReset(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	coord, hash, err := api.repo.GetCredentials(ctx.Request().Context(), data.Email)
	if err != nil {
		if core.IsNotFound(err) {
			return ctx.NoContent(http.StatusNoContent)
		}
		return errors.Wrap(err, "getting credentials")
	}
	if api.email == nil {
		return core.NewExternalServiceError("email", errors.New("not configured"))
	}

	token, err := school.MakeResetToken(api.resetKey, coord, hash)
	if err != nil {
		return err
	}
	api.email.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: coord.Name, Address: coord.Email}},
		Subject:      "Reset your password",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": coord.Name, "Email": coord.Email, "Token": token},
	})
	return ctx.NoContent(http.StatusNoContent)
}

// confirmPasswordReset sets the new password and signs the coordinator in.
func (api *schoolApi) confirmPasswordReset(ctx echo.Context) error {
	var data PasswordResetConfirm
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetConfirm")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	invalidToken := func(err error) error {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	rctx := ctx.Request().Context()
	coord, hash, err := api.repo.GetCredentials(rctx, data.Email)
	if err != nil {
		if core.IsNotFound(err) {
			return invalidToken(school.ErrInvalidResetToken)
		}
		return errors.Wrap(err, "getting credentials")
	}
	if err = school.VerifyResetToken(api.resetKey, api.resetTTL, coord, hash, data.Token); err != nil {
		return invalidToken(err)
	}

	err = api.gw.ResetPassword(rctx, coord.Email, data.Password)
	api.metrics.observe("password_reset", err)
	if err != nil {
		return errors.Wrap(err, "resetting password")
	}
	sess, err := api.auth.session(coord)
	if err != nil {
		return errors.Wrap(err, "opening session")
	}
	return ctx.JSON(http.StatusOK, sess)
}
