// Package secret holds credentials, such as the database password or the rollbar token, so
// that formatting or marshalling them never prints the value.
package secret

import "net/url"

// String is a credential. Only Raw and UserPassword expose the value.
type String string

const redacted = "REDACTED"

func (s String) String() string   { return redacted }
func (s String) GoString() string { return redacted }

func (s String) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (s String) Raw() string {
	return string(s)
}

// Empty reports whether the credential is unset, without exposing it.
func (s String) Empty() bool {
	return s == ""
}

// UserPassword returns the userinfo of a connection URL for user, with s as the password.
func (s String) UserPassword(user string) *url.Userinfo {
	return url.UserPassword(user, string(s))
}
