package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/target/console-auth/internal/bootstrap"
	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/service"
)

// prompter reads answers for the interactive login. Secrets are not echoed on a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// fd is the terminal file descriptor, or -1 when input is not a terminal.
	fd int
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &prompter{in: bufio.NewReader(in), out: out, fd: fd}
}

func (p *prompter) line(label string) (string, error) {
	if err := writef(p.out, "%s: ", label); err != nil {
		return "", err
	}
	s, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || s == "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) secret(label string) (string, error) {
	if p.fd < 0 {
		return p.line(label)
	}
	if err := writef(p.out, "%s: ", label); err != nil {
		return "", err
	}
	b, err := term.ReadPassword(p.fd)
	if werr := writef(p.out, "\n"); werr != nil && err == nil {
		err = werr
	}
	return string(b), err
}

func runLogin(cmdCtx *commandContext, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("login takes no arguments")
	}
	svc, err := bootstrap.BuildAuthService(cmdCtx.Ctx, bootstrap.AuthConfig{
		Config: &cmdCtx.Config,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close(context.WithoutCancel(cmdCtx.Ctx)) }()
	return interactiveLogin(cmdCtx.Ctx, svc, newPrompter(os.Stdin, os.Stdout), os.Stdout)
}

// interactiveLogin drives one session through every challenge until it is
// Authenticated, then prints its snapshot.
func interactiveLogin(ctx context.Context, svc *service.AuthService, p *prompter, out io.Writer) error {
	sess := svc.NewSession()
	defer svc.Destroy(sess.ID())

	username, err := p.line("Username")
	if err != nil {
		return err
	}
	password, err := p.secret("Password")
	if err != nil {
		return err
	}

	res, err := svc.Login(ctx, sess, username, password)
	for err == nil && res.Phase != domainauth.PhaseAuthenticated {
		res, err = answerChallenge(ctx, svc, sess, p, res.Challenge)
	}
	if err != nil {
		return describeLoginError(err)
	}

	snap := sess.Snapshot()
	if err := writef(out, "signed in as %s (%s)\n", snap.Identity.Username, snap.Identity.SubjectID); err != nil {
		return err
	}
	if snap.Profile == nil {
		return writef(out, "no profile loaded\n")
	}
	perms := snap.Permissions
	return writef(out, "organization=%s role=%s system_admin=%t manage_orgs=%t manage_users=%t\n",
		dash(perms.CurrentOrganizationID),
		dash(perms.CurrentRole),
		perms.SystemAdmin,
		perms.CanManageOrganizations,
		perms.CanManageUsers,
	)
}

func answerChallenge(
	ctx context.Context,
	svc *service.AuthService,
	sess *service.Session,
	p *prompter,
	kind domainauth.ChallengeKind,
) (service.TransitionResult, error) {
	switch kind {
	case domainauth.ChallengePasswordRequired:
		pw, err := p.secret("New password")
		if err != nil {
			return service.TransitionResult{}, err
		}
		return svc.CompletePasswordChallenge(ctx, sess, pw)
	case domainauth.ChallengeSmsMfa, domainauth.ChallengeTotpMfa:
		label := "SMS code"
		if kind == domainauth.ChallengeTotpMfa {
			label = "Authenticator code"
		}
		code, err := p.line(label)
		if err != nil {
			return service.TransitionResult{}, err
		}
		return svc.CompleteMfaChallenge(ctx, sess, code)
	default:
		return service.TransitionResult{}, fmt.Errorf("unexpected challenge %q", kind)
	}
}

func describeLoginError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Reason != "" {
		return fmt.Errorf("sign-in failed (%s): %w", appErr.Reason, err)
	}
	return fmt.Errorf("sign-in failed: %w", err)
}
