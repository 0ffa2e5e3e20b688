package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/medaccount/internal/api"
	"github.com/dmitrijs2005/medaccount/internal/common"
)

// getSimpleText and getPassword are indirections swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errPasswordMismatch = errors.New("passwords do not match")

// Register prompts for the account details and creates the account. The
// user still has to log in afterwards to open a session.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	role, err := getSimpleText(a.reader, "Role (patient, doctor, staff) [patient]", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.session.Register(ctx, &api.RegisterRequest{
		Email:           email,
		Username:        username,
		Password:        string(password),
		PasswordConfirm: string(confirm),
		Role:            role,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s as %s. Use 'login' to sign in.\n", res.Identity.Email, res.Identity.Role)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.session.Login(ctx, email, password, a.config.Location)
	if err != nil {
		return err
	}

	a.email = res.Identity.Email
	fmt.Fprintf(a.out, "Welcome, %s (%s)\n", res.Identity.Username, res.Identity.Role)
	return nil
}

// Logout ends the session. Local state is cleared even if the server call
// fails.
func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.session.Logout(ctx)
	a.email = ""
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	oldPassword, err := getPassword(a.out, "Current password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPassword)

	newPassword, err := getPassword(a.out, "New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	confirm, err := getPassword(a.out, "Repeat new password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(newPassword) != string(confirm) {
		return errPasswordMismatch
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ChangePassword(ctx, string(oldPassword), string(newPassword)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.session.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Server is up")
	return nil
}
