package views

import (
	"strings"

	"github.com/rivo/tview"

	"github.com/rescue-app/rescue/internal/tui/ui"
)

// Credentials is what the login form collects. Names are only used when
// registering.
type Credentials struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginView is shown when the profile has no valid token.
type LoginView struct {
	*tview.Form
	theme      *ui.Theme
	onLogin    func(Credentials)
	onRegister func(Credentials)
}

func NewLoginView(theme *ui.Theme) *LoginView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitle(" Sign in ")
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.BorderColor)

	lv := &LoginView{Form: form, theme: theme}
	form.AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddInputField("First name", "", 40, nil, nil).
		AddInputField("Last name", "", 40, nil, nil).
		AddButton("Login", func() {
			if lv.onLogin != nil {
				lv.onLogin(lv.Credentials())
			}
		}).
		AddButton("Register", func() {
			if lv.onRegister != nil {
				lv.onRegister(lv.Credentials())
			}
		})
	return lv
}

func (lv *LoginView) Title() string { return "Sign in" }

func (lv *LoginView) SetOnLogin(fn func(Credentials))    { lv.onLogin = fn }
func (lv *LoginView) SetOnRegister(fn func(Credentials)) { lv.onRegister = fn }

// Credentials returns the current field values.
func (lv *LoginView) Credentials() Credentials {
	text := func(label string) string {
		if f, ok := lv.GetFormItemByLabel(label).(*tview.InputField); ok {
			return strings.TrimSpace(f.GetText())
		}
		return ""
	}
	return Credentials{
		Email:     text("Email"),
		Password:  text("Password"),
		FirstName: text("First name"),
		LastName:  text("Last name"),
	}
}

// ClearPassword empties the password field after a failed attempt.
func (lv *LoginView) ClearPassword() {
	if f, ok := lv.GetFormItemByLabel("Password").(*tview.InputField); ok {
		f.SetText("")
	}
}
