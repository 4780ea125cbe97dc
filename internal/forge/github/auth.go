package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"golang.org/x/oauth2"

	"go.stackforge.dev/ws/internal/forge"
	"go.stackforge.dev/ws/internal/secret"
	"go.stackforge.dev/ws/internal/ui"
)

// _oauthAppClientID is this tool's registered OAuth app client ID.
// (Not secret — OAuth device-flow client IDs are public by design.)
const _oauthAppClientID = "Ov23li0000000000dummy"

// AuthenticationToken is the token returned by the GitHub forge.
type AuthenticationToken struct {
	forge.AuthenticationToken

	// GitHubCLI, if true, means API requests are authenticated by
	// shelling out to `gh auth token` rather than using AccessToken.
	GitHubCLI bool `json:"github_cli,omitempty"`

	AccessToken string `json:"access_token,omitempty"`
}

func (t *AuthenticationToken) forgeAuthToken() {}

var _ forge.AuthenticationToken = (*AuthenticationToken)(nil)

func (t *AuthenticationToken) tokenSource() oauth2.TokenSource {
	if t.GitHubCLI {
		return &CLITokenSource{}
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: t.AccessToken})
}

func (f *Forge) oauth2Endpoint() (oauth2.Endpoint, error) {
	base := "https://github.com"
	if f.Options.APIURL != "" {
		base = strings.TrimSuffix(f.Options.APIURL, "/api/v3") + "/"
	}

	u, err := url.Parse(base)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("bad GitHub URL: %w", err)
	}

	return oauth2.Endpoint{
		AuthURL:       u.JoinPath("/login/oauth/authorize").String(),
		TokenURL:      u.JoinPath("/login/oauth/access_token").String(),
		DeviceAuthURL: u.JoinPath("/login/device/code").String(),
	}, nil
}

// AuthenticationFlow prompts the user to authenticate with GitHub,
// via OAuth device flow, a pasted Personal Access Token, or GitHub CLI
// passthrough. Refuses to run if $GITHUB_TOKEN is already set.
func (f *Forge) AuthenticationFlow(ctx context.Context, view ui.View) (forge.AuthenticationToken, error) {
	log := f.logger()
	if f.Options.Token != "" {
		log.Error("Already authenticated with GITHUB_TOKEN; unset it to log in a different way.")
		return nil, errors.New("already authenticated")
	}

	endpoint, err := f.oauth2Endpoint()
	if err != nil {
		return nil, fmt.Errorf("get OAuth endpoint: %w", err)
	}

	auth, err := selectAuthenticator(view, endpoint)
	if err != nil {
		return nil, fmt.Errorf("select authenticator: %w", err)
	}

	return auth.Authenticate(ctx, view)
}

// SaveAuthenticationToken persists t to the stash, unless it is just a
// passthrough of $GITHUB_TOKEN.
func (f *Forge) SaveAuthenticationToken(stash secret.Stash, t forge.AuthenticationToken) error {
	ght := t.(*AuthenticationToken)
	if f.Options.Token != "" && f.Options.Token == ght.AccessToken {
		return nil
	}

	bs, err := json.Marshal(ght)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	f.logger().Debug("saving GitHub authentication token to local secret storage")
	return stash.SaveSecret(f.stashKey(), "token", string(bs))
}

// LoadAuthenticationToken loads the authentication token from the
// stash, preferring $GITHUB_TOKEN when set.
func (f *Forge) LoadAuthenticationToken(stash secret.Stash) (forge.AuthenticationToken, error) {
	if f.Options.Token != "" {
		return &AuthenticationToken{AccessToken: f.Options.Token}, nil
	}

	tokstr, err := stash.LoadSecret(f.stashKey(), "token")
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	var tok AuthenticationToken
	if err := json.Unmarshal([]byte(tokstr), &tok); err != nil {
		return &AuthenticationToken{AccessToken: tokstr}, nil
	}
	return &tok, nil
}

// ClearAuthenticationToken removes the authentication token from the
// stash.
func (f *Forge) ClearAuthenticationToken(stash secret.Stash) error {
	f.logger().Debug("clearing GitHub authentication token from local secret storage")
	return stash.DeleteSecret(f.stashKey(), "token")
}

func (f *Forge) stashKey() string {
	if f.Options.APIURL != "" {
		return f.Options.APIURL
	}
	return "https://github.com"
}

type authenticator interface {
	Authenticate(context.Context, ui.View) (*AuthenticationToken, error)
}

func selectAuthenticator(view ui.View, endpoint oauth2.Endpoint) (authenticator, error) {
	type option struct {
		title string
		build func() authenticator
	}
	opts := []option{
		{"OAuth device flow", func() authenticator {
			return &DeviceFlowAuthenticator{Endpoint: endpoint, ClientID: _oauthAppClientID, Scopes: []string{"repo"}}
		}},
		{"Personal Access Token", func() authenticator { return &PATAuthenticator{} }},
	}
	if ghExe, err := exec.LookPath("gh"); err == nil {
		opts = append(opts, option{"GitHub CLI", func() authenticator { return &CLIAuthenticator{GH: ghExe} }})
	}

	if !ui.Interactive(view) {
		return opts[0].build(), nil
	}

	items := make([]ui.ListItem[authenticator], len(opts))
	for i, o := range opts {
		items[i] = ui.ListItem[authenticator]{Title: o.title, Value: o.build()}
	}

	var method authenticator
	field := ui.NewList[authenticator]().
		WithTitle("Select an authentication method").
		WithItems(items...).
		WithValue(&method)
	if err := ui.Run(view, field); err != nil {
		return nil, err
	}
	return method, nil
}

// DeviceFlowAuthenticator implements the OAuth device flow for GitHub.
type DeviceFlowAuthenticator struct {
	Endpoint oauth2.Endpoint
	ClientID string
	Scopes   []string
}

// Authenticate runs the device authorization grant, printing a
// verification URL and code for the user to visit.
func (a *DeviceFlowAuthenticator) Authenticate(ctx context.Context, view ui.View) (*AuthenticationToken, error) {
	cfg := oauth2.Config{
		ClientID:    a.ClientID,
		Endpoint:    a.Endpoint,
		Scopes:      a.Scopes,
		RedirectURL: "http://127.0.0.1/callback",
	}

	resp, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("start device authorization: %w", err)
	}

	fmt.Fprintf(view, "1. Visit %s\n", resp.VerificationURI)
	fmt.Fprintf(view, "2. Enter code: %s\n", resp.UserCode)
	fmt.Fprintln(view, "The code expires in a few minutes.")

	token, err := cfg.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("wait for device authorization: %w", err)
	}
	return &AuthenticationToken{AccessToken: token.AccessToken}, nil
}

// PATAuthenticator prompts for a pasted Personal Access Token.
type PATAuthenticator struct{}

// Authenticate prompts for and returns a Personal Access Token.
func (a *PATAuthenticator) Authenticate(_ context.Context, view ui.View) (*AuthenticationToken, error) {
	var token string
	err := ui.Run(view,
		ui.NewInput().
			WithTitle("Enter Personal Access Token").
			WithValidate(func(input string) error {
				if strings.TrimSpace(input) == "" {
					return errors.New("token is required")
				}
				return nil
			}).
			WithValue(&token),
	)
	return &AuthenticationToken{AccessToken: token}, err
}

// CLIAuthenticator reuses an existing `gh auth login` session.
type CLIAuthenticator struct {
	GH string // required

	runCmd func(*exec.Cmd) error
}

// Authenticate checks that the GitHub CLI is authenticated.
func (a *CLIAuthenticator) Authenticate(context.Context, ui.View) (*AuthenticationToken, error) {
	runCmd := (*exec.Cmd).Run
	if a.runCmd != nil {
		runCmd = a.runCmd
	}

	if err := runCmd(exec.Command(a.GH, "auth", "token")); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, errors.Join(errors.New("gh is not authenticated"), fmt.Errorf("stderr: %s", exitErr.Stderr))
		}
		return nil, fmt.Errorf("run gh: %w", err)
	}
	return &AuthenticationToken{GitHubCLI: true}, nil
}
