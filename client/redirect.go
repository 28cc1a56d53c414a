package client

import (
	"net/url"
	"strings"
)

// Redirect holds the login markers extracted from a page URL after the
// provider sent the browser back. Exactly one family of fields is populated:
// Code+State for the authorization-code shape, AccessToken for the implicit
// fragment shape, or ErrorDescription when the provider reported failure.
type Redirect struct {
	Code             string
	State            string
	AccessToken      string
	ErrorDescription string
}

// Failed reports whether the provider sent an explicit error back.
func (r *Redirect) Failed() bool {
	return r.ErrorDescription != ""
}

// ParseRedirect inspects a page URL for login redirect markers. The second
// return value is false when the URL carries none, which is the common case
// on a plain page load.
//
// Recognized shapes:
//
//	https://app.example.com/cb?code=xxx&state=yyy
//	https://app.example.com/cb#access_token=xxx&...
//	https://app.example.com/cb#error=...&error_description=...
func ParseRedirect(pageURL string) (*Redirect, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, false
	}

	query := u.Query()
	if code := query.Get("code"); code != "" {
		return &Redirect{
			Code:  code,
			State: query.Get("state"),
		}, true
	}

	if u.Fragment != "" {
		fragment := parseFragment(u.Fragment)

		if desc := fragment.Get("error_description"); desc != "" {
			return &Redirect{ErrorDescription: desc}, true
		}
		if fragment.Get("error") != "" {
			return &Redirect{ErrorDescription: fragment.Get("error")}, true
		}
		if token := fragment.Get("access_token"); token != "" {
			return &Redirect{AccessToken: token}, true
		}
	}

	// An error can also come back in the query.
	if desc := query.Get("error_description"); desc != "" {
		return &Redirect{ErrorDescription: desc}, true
	}

	return nil, false
}

// parseFragment treats the URL fragment as form-encoded pairs. Some SDK
// redirects embed a route before the pairs ("#/callback?access_token=..."),
// so anything up to the last '?' is dropped first.
func parseFragment(fragment string) url.Values {
	if idx := strings.LastIndex(fragment, "?"); idx >= 0 {
		fragment = fragment[idx+1:]
	}
	values, err := url.ParseQuery(fragment)
	if err != nil {
		return url.Values{}
	}
	return values
}
