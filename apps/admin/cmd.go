package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB // nil with the memory engine
	usrRepo    user.Repository
	grdSvc     *guard.Service
	cltSvc     *client.Service
	evalSvc    *evaluation.Service
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Vigil administration commands",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.addGuardCmd(),
		cli.addClientCmd(),
		cli.reportCmd(),
	)
	return root
}

// run executes the command line; args[0] is the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

// readPassword prompts for a password, errHelp if none was typed.
func (cli *commandLine) readPassword(cmd *cobra.Command, prompt string) (string, error) {
	_, _ = fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

// describe renders validation errors field by field.
func (cli *commandLine) describe(err error) string {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		return joinFields(core.TranslateErrors(vErrs, cli.translator))
	}
	var valErr *core.ValidationError
	if errors.As(err, &valErr) {
		if flds := valErr.FieldMap(); flds != nil {
			return joinFields(flds)
		}
	}
	return err.Error()
}

func joinFields(flds map[string]string) string {
	lines := make([]string, 0, len(flds))
	for fld, msg := range flds {
		lines = append(lines, fld+": "+msg)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
