package cli

import (
	"context"
	"os"

	"github.com/dbrusnev/notelock/internal/common"
)

// Input indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getMultiline  = GetMultiline
)

// Register prompts for an email and password and creates a new account. A
// successful signup leaves the user signed in with the content watch running.
// The password bytes are wiped before returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.keys.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.startSession(ctx); err != nil {
		return err
	}

	printlnFn("Signed up as", user.Email)
	return nil
}

// Login prompts for credentials, authenticates and unwraps the content key.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.keys.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.startSession(ctx); err != nil {
		return err
	}

	printlnFn("Logged in as", user.Email)
	return nil
}

// Logout stops the content watch and ends the session; the gate purges the
// key material and the cache when the provider reports the sign-out.
func (a *App) Logout(ctx context.Context) error {
	a.stopWatching()
	return a.keys.SignOut(ctx)
}
