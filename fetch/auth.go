package fetch

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// Credentials authenticate against a private remote repository such as a
// Nexus or Artifactory instance. Token takes precedence over a username
// and password.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Empty reports whether no credential is set.
func (c Credentials) Empty() bool {
	return c.Token == "" && c.Username == "" && c.Password == ""
}

// header returns the Authorization header value for c.
func (c Credentials) header() string {
	if c.Token != "" {
		return "Bearer " + c.Token
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password))
}

// RepositoryAuth returns an auth function for WithAuthFunc that sends
// creds only to URLs on the same scheme and host as baseURL. Artifact
// URLs pointing anywhere else get no header.
func RepositoryAuth(baseURL string, creds Credentials) func(string) (string, string) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" || creds.Empty() {
		return func(string) (string, string) { return "", "" }
	}
	value := creds.header()
	return func(rawURL string) (string, string) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", ""
		}
		if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
			return "", ""
		}
		return "Authorization", value
	}
}
