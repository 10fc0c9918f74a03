package xbl

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sandertv/gophertunnel/minecraft/auth"
	"golang.org/x/oauth2"

	"github.com/warden-ac/warden/werror"
)

// xblRelyingParty is the relying party general Xbox Live services accept.
const xblRelyingParty = "http://xboxlive.com"

// xstsLifetime is how long an obtained XSTS token is reused before a fresh
// one is requested. The tokens are valid longer; refreshing early avoids
// racing expiry mid-query.
const xstsLifetime = 4 * time.Hour

// TokenAuthorizer turns the Live token source the game dialer already uses
// into XSTS authorization headers for the Xbox Live web services.
type TokenAuthorizer struct {
	src oauth2.TokenSource

	mu       sync.Mutex
	tok      *auth.XBLToken
	obtained time.Time
}

var _ Authorizer = (*TokenAuthorizer)(nil)

// NewTokenAuthorizer creates a TokenAuthorizer on top of the given Live
// token source.
func NewTokenAuthorizer(src oauth2.TokenSource) *TokenAuthorizer {
	return &TokenAuthorizer{src: src}
}

// Authorize attaches an XBL3.0 authorization header to the request,
// requesting a fresh XSTS token if the cached one has aged out.
func (a *TokenAuthorizer) Authorize(ctx context.Context, req *http.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tok == nil || time.Since(a.obtained) > xstsLifetime {
		live, err := a.src.Token()
		if err != nil {
			return werror.Wrap("xbl: live token", err)
		}
		tok, err := auth.RequestXBLToken(ctx, live, xblRelyingParty)
		if err != nil {
			return werror.Wrap("xbl: xsts token", err)
		}
		a.tok = tok
		a.obtained = time.Now()
	}

	a.tok.SetAuthHeader(req)
	return nil
}
