package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/services/gateway/local"
	"github.com/frizwan636-dotcom/attendancepro/services/notify"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNoMigration = errors.New("migrations are not available for the memory engine")
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	repo   school.Repository
	gw     *localgw.Gateway
	email  core.EmailService // nil disables -mail
	opener notify.Opener
	out    io.Writer

	// nil when the engine has no schema to migrate
	migrateFunc func(ctx context.Context, command string, args ...string) error
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                          - run a goose command (up, down, status, version...)")
	fmt.Fprintln(cli.out, "  signup -school NAME -school-pin PIN -name NAME -email EMAIL -pin PIN -mobile NUMBER")
	fmt.Fprintln(cli.out, "                                                  - register a school and its coordinator")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL                      - reset a coordinator's password")
	fmt.Fprintln(cli.out, "  setpin -school PIN -pin NEWPIN                  - change a school's PIN")
	fmt.Fprintln(cli.out, "  summary -school PIN -date YYYY-MM-DD            - print the daily attendance summary")
	fmt.Fprintln(cli.out, "  export -school PIN -kind fees|daily|monthly     - export a report (see export -h)")
	fmt.Fprintln(cli.out, "  remind -school PIN -kind absent|fees            - compose parent notices (see remind -h)")
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			fmt.Fprintln(cli.out, "Usage: migrate COMMAND [ARGS]")
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "signup":
		cmd := cli.flagSet("signup")
		nc := school.NewCoordinator{}
		cmd.StringVar(&nc.SchoolName, "school", "", "The school's name.")
		cmd.StringVar(&nc.SchoolPIN, "school-pin", "", "The PIN teachers use to join the school.")
		cmd.StringVar(&nc.Name, "name", "", "The coordinator's name.")
		cmd.StringVar(&nc.Email, "email", "", "The coordinator's email. The password will be prompted next.")
		cmd.StringVar(&nc.PIN, "pin", "", "The coordinator's 4 digit PIN.")
		cmd.StringVar(&nc.MobileNumber, "mobile", "", "The coordinator's mobile number.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if nc.SchoolName == "" || nc.SchoolPIN == "" || nc.Email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(cmd)
		if err != nil {
			return err
		}
		nc.Password, nc.PasswordConfirm = pwd, pwd
		return cli.signUp(ctx, nc)

	case "resetpassword":
		cmd := cli.flagSet("resetpassword")
		email := cmd.String("email", "", "The coordinator's email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(cmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *email, pwd)

	case "setpin":
		cmd := cli.flagSet("setpin")
		schoolPIN := cmd.String("school", "", "The school's current PIN.")
		pin := cmd.String("pin", "", "The new PIN.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *schoolPIN == "" || strings.TrimSpace(*pin) == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.setPIN(ctx, *schoolPIN, *pin)

	case "summary":
		cmd := cli.flagSet("summary")
		schoolPIN := cmd.String("school", "", "The school's PIN.")
		date := cmd.String("date", "", "The day to summarise, YYYY-MM-DD.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *schoolPIN == "" || *date == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.summary(ctx, *schoolPIN, *date)

	case "export":
		cmd := cli.flagSet("export")
		opts := exportOptions{}
		cmd.StringVar(&opts.schoolPIN, "school", "", "The school's PIN.")
		cmd.StringVar(&opts.kind, "kind", "", "fees, daily or monthly.")
		cmd.StringVar(&opts.format, "format", "csv", "csv, doc or pdf.")
		cmd.StringVar(&opts.date, "date", "", "The day of a daily report, YYYY-MM-DD.")
		cmd.StringVar(&opts.from, "from", "", "First day of a monthly report, YYYY-MM-DD.")
		cmd.StringVar(&opts.to, "to", "", "Last day of a monthly report, YYYY-MM-DD.")
		cmd.StringVar(&opts.class, "class", "", "Restrict to one class, eg. 5-A.")
		cmd.StringVar(&opts.outFile, "out", "", "Write the report to this file instead of stdout.")
		cmd.StringVar(&opts.mailTo, "mail", "", "Email the report to this address.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if opts.schoolPIN == "" || opts.kind == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.export(ctx, opts)

	case "remind":
		cmd := cli.flagSet("remind")
		schoolPIN := cmd.String("school", "", "The school's PIN.")
		kind := cmd.String("kind", "", "absent or fees.")
		date := cmd.String("date", "", "The day of absence, YYYY-MM-DD.")
		class := cmd.String("class", "", "Restrict to one class, eg. 5-A. Required for absent.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *schoolPIN == "" || *kind == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.remind(ctx, *schoolPIN, *kind, *date, *class)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword(cmd *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

// loadSchool pulls the school with pin into a fresh store.
func (cli *commandLine) loadSchool(ctx context.Context, pin string) (*school.Store, error) {
	sch, err := cli.repo.GetSchoolByPIN(ctx, strings.TrimSpace(pin))
	if err != nil {
		return nil, err
	}
	data, err := cli.repo.GetSchoolData(ctx, sch.ID)
	if err != nil {
		return nil, err
	}
	store := school.NewStore()
	if err = store.LoadSchool(data); err != nil {
		return nil, err
	}
	return store, nil
}

// parseClass reads "5-A" style class references. The section may be empty ("5").
func parseClass(s string) (school.ClassRef, error) {
	s = strings.TrimSpace(s)
	name, section := s, ""
	if i := strings.LastIndex(s, "-"); i >= 0 {
		name, section = s[:i], s[i+1:]
	}
	name, section = strings.TrimSpace(name), strings.TrimSpace(section)
	if name == "" {
		msg := "class must look like 5-A"
		return school.ClassRef{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "class", Error: msg})
	}
	return school.ClassRef{ClassName: name, Section: section}, nil
}
