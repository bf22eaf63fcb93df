package orchestrator

import (
	"context"
	"strings"

	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/refresh"
)

type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.User, error)
	Signup(ctx context.Context, creds domain.Credentials) (domain.User, error)
	Me(ctx context.Context) (domain.User, error)
}

type loginForm struct {
	Username string `json:"username" validate:"required" msg:"enter_credentials"`
	Password string `json:"password" validate:"required" msg:"enter_credentials"`
}

type signupForm struct {
	Username        string `json:"username" validate:"required" msg:"enter_credentials"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password" msg:"password_mismatch"`
	Password        string `json:"password" validate:"required,min=6" msg:"enter_credentials,min=password_too_short"`
}

// Login is the sign-in form.
type Login struct {
	Modal
	auth Authenticator

	OnLoggedIn func(domain.User)

	username string
	password string
}

func NewLogin(auth Authenticator, deps Deps) *Login {
	return &Login{Modal: newModal(deps, "login"), auth: auth}
}

func (d *Login) Open() { d.activate() }

func (d *Login) SetCredentials(username, password string) {
	d.mu.Lock()
	d.username = username
	d.password = password
	d.mu.Unlock()
}

func (d *Login) Submit(ctx context.Context) (domain.User, error) {
	release, err := d.begin()
	if err != nil {
		return domain.User{}, err
	}
	defer release()

	d.mu.Lock()
	form := loginForm{Username: strings.TrimSpace(d.username), Password: d.password}
	d.mu.Unlock()
	if err := validateForm(&form, d.lang); err != nil {
		return domain.User{}, d.invalid(err)
	}
	user, err := d.auth.Login(ctx, domain.Credentials{Username: form.Username, Password: form.Password})
	if err != nil {
		return domain.User{}, d.fail(err, msgLoginFailed, msgLoginError)
	}

	d.mu.Lock()
	d.password = ""
	onLoggedIn := d.OnLoggedIn
	d.mu.Unlock()
	if onLoggedIn != nil {
		onLoggedIn(user)
	}
	d.succeed(refresh.TopicOrganizations, refresh.TopicTasks)
	return user, nil
}

// Signup creates an account. The backend signs the new user in; when the
// session cannot be confirmed afterwards OnSignedUp is told so and the shell
// falls back to the login form.
type Signup struct {
	Modal
	auth Authenticator

	OnSignedUp func(user domain.User, sessionActive bool)

	username        string
	password        string
	confirmPassword string
}

func NewSignup(auth Authenticator, deps Deps) *Signup {
	return &Signup{Modal: newModal(deps, "signup"), auth: auth}
}

func (d *Signup) Open() { d.activate() }

func (d *Signup) SetCredentials(username, password, confirmPassword string) {
	d.mu.Lock()
	d.username = username
	d.password = password
	d.confirmPassword = confirmPassword
	d.mu.Unlock()
}

func (d *Signup) Submit(ctx context.Context) (domain.User, error) {
	release, err := d.begin()
	if err != nil {
		return domain.User{}, err
	}
	defer release()

	d.mu.Lock()
	form := signupForm{Username: strings.TrimSpace(d.username), Password: d.password, ConfirmPassword: d.confirmPassword}
	d.mu.Unlock()
	if err := validateForm(&form, d.lang); err != nil {
		return domain.User{}, d.invalid(err)
	}
	user, err := d.auth.Signup(ctx, domain.Credentials{Username: form.Username, Password: form.Password})
	if err != nil {
		return domain.User{}, d.fail(err, msgSignupFailed, msgSignupError)
	}

	_, meErr := d.auth.Me(ctx)
	if meErr != nil {
		d.logger.WithError(meErr).Info("orchestrator: session not active after signup")
	}
	d.mu.Lock()
	d.password, d.confirmPassword = "", ""
	onSignedUp := d.OnSignedUp
	d.mu.Unlock()
	if onSignedUp != nil {
		onSignedUp(user, meErr == nil)
	}
	d.succeed(refresh.TopicOrganizations, refresh.TopicTasks)
	return user, nil
}
