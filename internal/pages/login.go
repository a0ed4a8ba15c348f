package pages

import (
	"context"
	"fmt"
	"strings"
)

// Login page field names.
const (
	FieldUsername       = "username input"
	FieldPassword       = "password input"
	FieldLoginButton    = "login button"
	FieldSuccessMessage = "success message"
)

// LoginPage is the built-in login page definition.
func LoginPage() Definition {
	return Definition{
		Name: "login page",
		URL:  "https://www.saucedemo.com/",
		Fields: map[string]Field{
			FieldUsername:       {Primary: `input[name="username"]`, Backups: []string{"#username"}},
			FieldPassword:       {Primary: `input[name="password"]`, Backups: []string{"#password"}},
			FieldLoginButton:    {Primary: `button[name="login"]`, Backups: []string{"#loginButton"}},
			FieldSuccessMessage: {Primary: `div[class="success-message"]`, Backups: []string{"#loginSuccess"}},
		},
	}
}

// Login wraps a page object bound to a login page definition.
type Login struct {
	*Object
}

// EnterUsername fills the username input.
func (l Login) EnterUsername(ctx context.Context, username string) error {
	return l.Fill(ctx, FieldUsername, username)
}

// EnterPassword fills the password input.
func (l Login) EnterPassword(ctx context.Context, password string) error {
	return l.Fill(ctx, FieldPassword, password)
}

// ClickLogin submits the form.
func (l Login) ClickLogin(ctx context.Context) error {
	return l.Click(ctx, FieldLoginButton)
}

// ExpectLoggedIn fails unless the success message mentions "Welcome".
func (l Login) ExpectLoggedIn(ctx context.Context) error {
	text, err := l.Text(ctx, FieldSuccessMessage)
	if err != nil {
		return err
	}
	if !strings.Contains(text, "Welcome") {
		return fmt.Errorf("login failed: success message is %q", text)
	}
	return nil
}
