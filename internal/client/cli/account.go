package cli

import (
	"context"
	"os"

	"github.com/dbrusnev/notelock/internal/common"
)

// VerifyEmail asks the backend to send a verification message to the
// account's address.
func (a *App) VerifyEmail(ctx context.Context) error {
	if err := a.auth.SendVerificationEmail(ctx); err != nil {
		return err
	}
	printlnFn("Verification email sent.")
	return nil
}

// UpdateEmail changes the account's email address. The verified flag resets
// until the new address is confirmed.
func (a *App) UpdateEmail(ctx context.Context) error {
	newEmail, err := getSimpleText(a.reader, "Enter new email", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.auth.UpdateEmail(ctx, newEmail); err != nil {
		return err
	}
	printlnFn("Email updated to", newEmail)
	return nil
}

// UpdatePassword re-authenticates with the current password and then rewraps
// the content key under the new one. Notes stay readable; only the wrapping
// changes.
func (a *App) UpdatePassword(ctx context.Context) error {
	current, err := getPassword("Enter current password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	if err := a.auth.Reauthenticate(ctx, string(current)); err != nil {
		return err
	}

	newPassword, err := getPassword("Enter new password", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	if err := a.keys.ChangePassword(ctx, newPassword); err != nil {
		return err
	}
	printlnFn("Password updated.")
	return nil
}

// DeleteAllData wipes every note and list, leaving the account and the
// default list in place.
func (a *App) DeleteAllData(ctx context.Context) error {
	userID, err := a.currentUserID()
	if err != nil {
		return err
	}
	answer, err := getSimpleText(a.reader, "Delete all notes and lists? (yes/no)", os.Stdout)
	if err != nil {
		return err
	}
	if answer != "yes" {
		printlnFn("Cancelled.")
		return nil
	}
	if err := a.notes.DeleteAllData(ctx, userID); err != nil {
		return err
	}
	printlnFn("All data deleted.")
	return nil
}

// DeleteAccount re-authenticates, purges every remote record including the
// wrapped-key record, and removes the account itself.
func (a *App) DeleteAccount(ctx context.Context) error {
	userID, err := a.currentUserID()
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password to confirm", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Reauthenticate(ctx, string(password)); err != nil {
		return err
	}

	a.stopWatching()
	if err := a.notes.PurgeAccountData(ctx, userID); err != nil {
		return err
	}
	if err := a.auth.DeleteAccount(ctx); err != nil {
		return err
	}
	a.keys.Clear(ctx)

	printlnFn("Account deleted.")
	return nil
}
