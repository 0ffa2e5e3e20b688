package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
	failOn   string
}

func (f *fakeExec) record(call string) error {
	f.calls = append(f.calls, call)
	if call == f.failOn {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(context.Context) error {
	return f.record("register")
}
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}
func (f *fakeExec) ChangePassword(context.Context) error { return f.record("passwd") }
func (f *fakeExec) Sessions(context.Context) error       { return f.record("sessions") }
func (f *fakeExec) Revoke(_ context.Context, id string) error {
	return f.record("revoke " + id)
}
func (f *fakeExec) Dashboard(context.Context) error { return f.record("dashboard") }
func (f *fakeExec) Profile(context.Context) error   { return f.record("profile") }
func (f *fakeExec) SetProfile(_ context.Context, field, value string) error {
	return f.record("setprofile " + field + "=" + value)
}
func (f *fakeExec) UploadAvatar(_ context.Context, path string) error {
	return f.record("avatar " + path)
}
func (f *fakeExec) Ping(context.Context) error { return f.record("ping") }

func capturePrints(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		printed = append(printed, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &printed
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	capturePrints(t)

	input := strings.Join([]string{
		"login",
		"",
		"dashboard",
		"sessions",
		"revoke s-1",
		"profile",
		"setprofile bio likes long walks",
		"avatar me.png",
		"passwd",
		"ping",
		"logout",
		"register",
		"exit",
		"dashboard",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{
		"login",
		"dashboard",
		"sessions",
		"revoke s-1",
		"profile",
		"setprofile bio=likes long walks",
		"avatar me.png",
		"passwd",
		"ping",
		"logout",
		"register",
	}, exec.calls)
}

func TestRunREPL_UsageAndUnknown(t *testing.T) {
	printed := capturePrints(t)

	input := "revoke\nsetprofile bio\navatar\nfoobar\nquit\n"
	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "(guest)" }, bufio.NewReader(strings.NewReader(input)))

	assert.Empty(t, exec.calls)
	out := strings.Join(*printed, "\n")
	assert.Contains(t, out, "Usage: revoke <session id>")
	assert.Contains(t, out, "Usage: setprofile <field> <value>")
	assert.Contains(t, out, "Usage: avatar <image path>")
	assert.Contains(t, out, "Unknown command: foobar")
	assert.Contains(t, out, "Bye!")
	assert.Contains(t, out, "med (guest)> ")
}

func TestRunREPL_HelpDependsOnLogin(t *testing.T) {
	printed := capturePrints(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("help\nlogin\nhelp\n")))

	out := strings.Join(*printed, "\n")
	assert.Contains(t, out, "Available commands: register, login, ping, exit")
	assert.Contains(t, out, "Available commands: dashboard, sessions")
}

func TestRunREPL_ReportsErrorsAndContinues(t *testing.T) {
	printed := capturePrints(t)

	exec := &fakeExec{failOn: "dashboard"}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("dashboard\nsessions\n")))

	assert.Equal(t, []string{"dashboard", "sessions"}, exec.calls)
	assert.Contains(t, strings.Join(*printed, "\n"), "Error: boom")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	capturePrints(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewReader(strings.NewReader("dashboard\n")))
	assert.Empty(t, exec.calls)
}
