package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

// RollbarLogger reports to Rollbar and mirrors every entry on a std logger.
// A school.Teacher argument names the acting user: it becomes the Rollbar person
// and its school is attached as custom data.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// actor returns the first teacher found in args.
func actor(args []interface{}) (school.Teacher, bool) {
	for _, arg := range args {
		if t, ok := arg.(school.Teacher); ok {
			return t, true
		}
	}
	return school.Teacher{}, false
}

// schoolData is the custom data rollbar receives for the acting teacher.
func schoolData(t school.Teacher) map[string]interface{} {
	data := map[string]interface{}{"school_id": t.SchoolID}
	if t.Role != "" {
		data["role"] = string(t.Role)
	}
	return data
}

// prepare turns args into rollbar's: msg, then errors and custom data maps.
// Teachers are consumed. Anonymous school PIN access has a school but no person.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	newArgs := make([]interface{}, 0, len(args)+2)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if _, ok := arg.(school.Teacher); !ok {
			newArgs = append(newArgs, arg)
		}
	}

	t, ok := actor(args)
	if ok && t.ID != "" {
		rollbar.SetPerson(t.ID, t.Name, t.Email)
	} else {
		rollbar.ClearPerson()
	}
	if ok && t.SchoolID != "" {
		newArgs = append(newArgs, schoolData(t))
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		t, ok := arg.(school.Teacher)
		switch {
		case !ok:
			l.std.Printf("  %+v", arg)
		case t.ID != "":
			l.std.Printf("  by %s %s (%s) of school %s", t.Role, t.Name, t.ID, t.SchoolID)
		case t.SchoolID != "":
			l.std.Printf("  by a school PIN holder of school %s", t.SchoolID)
		}
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
