package echoapi

import (
	"fmt"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/services/gateway/local"
)

type schoolApi struct {
	repo       school.Repository
	gw         *localgw.Gateway
	auth       *authenticator
	metrics    *Metrics
	email      core.EmailService
	resetKey   string
	resetTTL   time.Duration
	validate   *validator.Validate
	translator ut.Translator
}

func registerSchoolAPI(g *echo.Group, api *schoolApi) {
	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/signup", api.signUp)
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, api.auth.middleware())
	ag.POST("/password-reset", api.requestPasswordReset)
	ag.POST("/password-reset/confirm", api.confirmPasswordReset)

	g.GET("/schools/by-pin/:pin", api.schoolByPIN)

	// school scoped endpoints
	sg := g.Group("/schools/:id", schoolAccessMiddleware(api.auth, api.repo))
	sg.GET("/data", api.schoolData)

	sg.POST("/teachers", api.createTeacher)
	sg.PUT("/teachers/:tid", api.updateTeacher)
	sg.DELETE("/teachers/:tid", api.deleteTeacher)

	sg.POST("/students", api.createStudents)
	sg.PUT("/students/:sid", api.updateStudent)
	sg.DELETE("/students/:sid", api.deleteStudent)
	sg.POST("/students/:sid/payments", api.recordPayment)

	sg.PUT("/attendance", api.upsertAttendance)
	sg.PUT("/teacher-attendance", api.upsertTeacherAttendance)
	sg.PUT("/submissions", api.upsertSubmission)

	sg.PUT("/pin", api.updateSchoolPIN, coordinatorMiddleware())
}

// Handlers

func (api *schoolApi) signUp(ctx echo.Context) error {
	var data school.NewCoordinator
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewCoordinator")
	}

	sch, coord, err := api.gw.Register(ctx.Request().Context(), data)
	api.metrics.observe("signup", err)
	if err != nil {
		return errors.Wrap(err, "registering school")
	}
	sess, err := api.auth.session(coord)
	if err != nil {
		return errors.Wrap(err, "opening session")
	}
	sess.SchoolID = sch.ID
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *schoolApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	coord, err := api.gw.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	sess, err := api.auth.session(coord)
	if err != nil {
		return errors.Wrap(err, "opening session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *schoolApi) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	coord, _, err := api.repo.GetCredentials(ctx.Request().Context(), claims.Email)
	if err != nil {
		if core.IsNotFound(err) {
			return errUnauthorized
		}
		return errors.Wrap(err, "getting credentials")
	}
	sess, err := api.auth.refresh(claims, coord)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *schoolApi) schoolByPIN(ctx echo.Context) error {
	sch, err := api.repo.GetSchoolByPIN(ctx.Request().Context(), core.CleanString(ctx.Param("pin")))
	if err != nil {
		return errors.Wrap(err, "finding school by PIN")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) schoolData(ctx echo.Context) error {
	data, err := api.repo.GetSchoolData(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting school data")
	}
	return ctx.JSON(http.StatusOK, data)
}

func (api *schoolApi) createTeacher(ctx echo.Context) error {
	var data school.Teacher
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to Teacher")
	}
	data.ID = ""
	data.SchoolID = ctx.Param("id")
	data.Role = school.RoleTeacher
	if err := api.checkRecord(&data); err != nil {
		return err
	}

	t, err := api.repo.CreateTeacher(ctx.Request().Context(), data)
	api.metrics.observe("create_teacher", err)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *schoolApi) updateTeacher(ctx echo.Context) error {
	var data school.Teacher
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to Teacher")
	}
	data.ID = ctx.Param("tid")
	data.SchoolID = ctx.Param("id")
	if err := api.checkRecord(&data); err != nil {
		return err
	}

	t, err := api.repo.UpdateTeacher(ctx.Request().Context(), data)
	api.metrics.observe("update_teacher", err)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *schoolApi) deleteTeacher(ctx echo.Context) error {
	err := api.repo.DeleteTeacher(ctx.Request().Context(), ctx.Param("id"), ctx.Param("tid"))
	api.metrics.observe("delete_teacher", err)
	if err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) createStudents(ctx echo.Context) error {
	var data []school.Student
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to []Student")
	}
	for i := range data {
		data[i].ID = ""
		data[i].SchoolID = ctx.Param("id")
		if err := api.checkRecord(&data[i], fmt.Sprintf("students[%d].", i)); err != nil {
			return err
		}
	}

	students, err := api.repo.CreateStudents(ctx.Request().Context(), data)
	api.metrics.observe("create_students", err)
	if err != nil {
		return errors.Wrap(err, "creating students")
	}
	return ctx.JSON(http.StatusCreated, students)
}

func (api *schoolApi) updateStudent(ctx echo.Context) error {
	var data school.Student
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to Student")
	}
	data.ID = ctx.Param("sid")
	data.SchoolID = ctx.Param("id")
	if err := api.checkRecord(&data); err != nil {
		return err
	}

	st, err := api.repo.UpdateStudent(ctx.Request().Context(), data)
	api.metrics.observe("update_student", err)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *schoolApi) deleteStudent(ctx echo.Context) error {
	err := api.repo.DeleteStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sid"))
	api.metrics.observe("delete_student", err)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) recordPayment(ctx echo.Context) error {
	var data school.FeePayment
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to FeePayment")
	}
	data.ID = ""
	data.StudentID = ctx.Param("sid")

	p, err := api.repo.CreateFeePayment(ctx.Request().Context(), ctx.Param("id"), data)
	api.metrics.observe("record_payment", err)
	if err != nil {
		return errors.Wrap(err, "recording fee payment")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *schoolApi) upsertAttendance(ctx echo.Context) error {
	var data []school.AttendanceRecord
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to []AttendanceRecord")
	}
	dates := make([]string, len(data))
	statuses := make([]school.AttendanceStatus, len(data))
	for i, rec := range data {
		dates[i], statuses[i] = rec.Date, rec.Status
	}
	if err := checkAttendance(dates, statuses, "attendance"); err != nil {
		return err
	}

	saved, err := api.repo.UpsertAttendance(ctx.Request().Context(), ctx.Param("id"), data)
	api.metrics.observe("upsert_attendance", err)
	if err != nil {
		return errors.Wrap(err, "saving attendance")
	}
	return ctx.JSON(http.StatusOK, saved)
}

func (api *schoolApi) upsertTeacherAttendance(ctx echo.Context) error {
	var data []school.TeacherAttendanceRecord
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to []TeacherAttendanceRecord")
	}
	dates := make([]string, len(data))
	statuses := make([]school.AttendanceStatus, len(data))
	for i, rec := range data {
		dates[i], statuses[i] = rec.Date, rec.Status
	}
	if err := checkAttendance(dates, statuses, "teacher_attendance"); err != nil {
		return err
	}

	saved, err := api.repo.UpsertTeacherAttendance(ctx.Request().Context(), ctx.Param("id"), data)
	api.metrics.observe("upsert_teacher_attendance", err)
	if err != nil {
		return errors.Wrap(err, "saving teacher attendance")
	}
	return ctx.JSON(http.StatusOK, saved)
}

func (api *schoolApi) upsertSubmission(ctx echo.Context) error {
	var data school.DailySubmission
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to DailySubmission")
	}
	data.SchoolID = ctx.Param("id")
	if err := api.checkRecord(&data); err != nil {
		return err
	}

	sub, err := api.repo.UpsertDailySubmission(ctx.Request().Context(), data)
	api.metrics.observe("upsert_submission", err)
	if err != nil {
		return errors.Wrap(err, "saving daily submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *schoolApi) updateSchoolPIN(ctx echo.Context) error {
	var data SchoolPINRequest
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to SchoolPINRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	sch, err := api.repo.UpdateSchoolPIN(ctx.Request().Context(), ctx.Param("id"), data.PIN)
	api.metrics.observe("update_school_pin", err)
	if err != nil {
		return errors.Wrap(err, "updating school PIN")
	}
	return ctx.JSON(http.StatusOK, sch)
}
