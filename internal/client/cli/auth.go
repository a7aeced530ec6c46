package cli

import (
	"context"
	"errors"

	"github.com/scriptureforge/offline/internal/common"
)

var errNotLoggedIn = errors.New("log in first")

// Login validates a bearer token and switches chat history to the user's
// own storage key.
func (a *App) Login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("login <token>")
	}
	uid, err := a.session.Login(args[0], []byte(a.config.SecretKey))
	if err != nil {
		return err
	}
	if err := a.history.SwitchSession(ctx, a.session); err != nil {
		a.session.Logout()
		return err
	}
	a.printf("Logged in as %s\n", uid)
	return nil
}

func (a *App) Logout(ctx context.Context, _ []string) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	a.stopAutoSync()
	a.session.Logout()
	if err := a.history.SwitchSession(ctx, a.session); err != nil {
		return err
	}
	a.printf("Logged out\n")
	return nil
}

// Sync pushes pending annotations once. "sync auto" keeps pushing every
// SyncInterval in the background until "sync stop", logout or exit.
func (a *App) Sync(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "stop" {
		if a.stopAutoSync() {
			a.printf("Background sync stopped\n")
		}
		return nil
	}
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	passphrase, err := getPassword("Sync passphrase", a.out)
	if err != nil {
		return err
	}

	uid := a.session.UserID()
	rep, err := a.pusher.Push(ctx, uid, passphrase)
	if err != nil {
		common.WipeByteArray(passphrase)
		return err
	}
	a.printf("Uploaded %d, deleted %d\n", rep.Uploaded, rep.Deleted)

	if len(args) == 0 || args[0] != "auto" {
		common.WipeByteArray(passphrase)
		return nil
	}

	a.stopAutoSync()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.syncMu.Lock()
	a.stopSync, a.syncDoneCh = cancel, done
	a.syncMu.Unlock()

	go func() {
		defer close(done)
		defer common.WipeByteArray(passphrase)
		a.pusher.Run(runCtx, a.config.SyncInterval, uid, passphrase)
	}()
	a.printf("Background sync every %s\n", a.config.SyncInterval)
	return nil
}

// stopAutoSync cancels background sync and waits for it to finish. It
// reports whether anything was running.
func (a *App) stopAutoSync() bool {
	a.syncMu.Lock()
	cancel, done := a.stopSync, a.syncDoneCh
	a.stopSync, a.syncDoneCh = nil, nil
	a.syncMu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}
