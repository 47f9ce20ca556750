// Package identity exchanges member credentials for an opaque API token with
// the organization's single-sign-on provider. The provider has no token
// endpoint; it only serves an HTML login form and sets the token in a cookie,
// so the exchange is isolated behind a narrow interface here and the rest of
// the application only ever sees the token.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidCredentials covers every authentication failure: wrong
// credentials, a non-2xx response and a missing token cookie. The provider
// does not distinguish them and neither do we.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Profile is the member-directory record of the authenticated caller.
type Profile struct {
	Person struct {
		Email           string `json:"email"`
		FullName        string `json:"full_name"`
		ProfilePhotoURL string `json:"profile_photo_url"`
		HomeMC          struct {
			ID int64 `json:"id"`
		} `json:"home_mc"`
		HomeLC struct {
			ID int64 `json:"id"`
		} `json:"home_lc"`
	} `json:"person"`
	CurrentPosition struct {
		Team struct {
			TeamType string `json:"team_type"`
		} `json:"team"`
	} `json:"current_position"`
}

type Bridge struct {
	loginURL    string
	profileURL  string
	tokenCookie string
	timeout     time.Duration
}

func NewBridge(loginURL, profileURL, tokenCookie string) *Bridge {
	return &Bridge{
		loginURL:    loginURL,
		profileURL:  profileURL,
		tokenCookie: tokenCookie,
		timeout:     30 * time.Second,
	}
}

// Authenticate submits the provider's login form once and extracts the opaque
// API token from the cookie the provider sets on success. No retries.
func (b *Bridge) Authenticate(ctx context.Context, email, password string) (string, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", err
	}

	// A fresh client per attempt: the jar must hold only this login's cookies.
	client := &http.Client{
		Jar:     jar,
		Timeout: b.timeout,
	}

	form := url.Values{}
	form.Set("user[email]", email)
	form.Set("user[password]", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity provider request failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ErrInvalidCredentials
	}

	loginURL, err := url.Parse(b.loginURL)
	if err != nil {
		return "", err
	}

	for _, cookie := range jar.Cookies(loginURL) {
		if cookie.Name != b.tokenCookie {
			continue
		}
		token, err := url.QueryUnescape(cookie.Value)
		if err != nil || token == "" {
			return "", ErrInvalidCredentials
		}
		return token, nil
	}

	// Credentials rejected: the provider re-renders the form with 200 and
	// never sets the token cookie.
	return "", ErrInvalidCredentials
}

// CurrentPerson fetches the caller's profile from the member-directory API
// using the opaque token obtained by Authenticate.
func (b *Bridge) CurrentPerson(ctx context.Context, token string) (*Profile, error) {
	u, err := url.Parse(b.profileURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: b.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("member directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("member directory returned %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	return &profile, nil
}
