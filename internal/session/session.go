// Package session carries the authenticated field-worker identity.
// It is handed to the pipeline and API clients explicitly; nothing in
// this module reads credentials from ambient state.
package session

// Context identifies the signed-in field worker for outbound API calls.
type Context struct {
	Token  string
	UserID string
	FLWID  string
}

// Authorization returns the bearer header value for Token.
func (c Context) Authorization() string {
	return "Bearer " + c.Token
}

// Authenticated reports whether a token is present. Saving a record
// requires a signed-in session.
func (c Context) Authenticated() bool {
	return c.Token != ""
}
