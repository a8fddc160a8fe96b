package clone

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	gogithttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gogitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/rs/zerolog"
)

// recognizedForgeHosts is the set of hosts the credential selector is
// willing to hand out credentials for (spec.md §4.3: "refuse
// credentials for any URL that is not a recognized forge URL").
var recognizedForgeHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
}

// CredentialSelector picks a transport.AuthMethod for a clone/fetch
// URL, scoped to recognized forge hosts only.
type CredentialSelector struct {
	// HomeDir overrides the user's home directory; used by tests.
	HomeDir string
}

// NewCredentialSelector builds a selector using the real OS home
// directory.
func NewCredentialSelector() *CredentialSelector {
	return &CredentialSelector{}
}

// SelectAuth returns nil (no auth) for non-forge URLs and local paths,
// and otherwise tries SSH-agent, then an on-disk ED25519 keypair, then
// HTTPS default credentials, per spec.md §4.3. A failure to produce
// one method never aborts the request: SelectAuth falls through to the
// next allowed method and only errors out when none apply and the URL
// demands auth (handled by the caller classifying the resulting
// transport error).
func (c *CredentialSelector) SelectAuth(ctx context.Context, rawURL string) (transport.AuthMethod, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !recognizedForgeHosts[u.Host] {
		return nil, nil
	}

	log := zerolog.Ctx(ctx).With().Str("host", u.Host).Logger()

	if strings.EqualFold(u.Scheme, "ssh") || strings.HasPrefix(rawURL, "git@") {
		if auth, ok := c.sshAgentAuth(); ok {
			log.Debug().Msg("using ssh agent credentials")
			return auth, nil
		}
		if auth, ok := c.sshKeyFileAuth(); ok {
			log.Debug().Msg("using on-disk ssh keypair")
			return auth, nil
		}
		// Credential probe failures never poison the request (spec §7):
		// fall through to attempting the clone unauthenticated.
		return nil, nil
	}

	// HTTPS: allow default credentials only (spec.md §4.3) — e.g. a
	// GIT_ASKPASS helper or credential.helper already configured in the
	// environment. go-git does not read those implicitly, so the
	// selector only wires an explicit auth method when the caller's
	// environment supplies one via GITHUB_TOKEN/GITLAB_TOKEN.
	if tok := httpsDefaultToken(u.Host); tok != "" {
		return &gogithttp.BasicAuth{Username: "x-access-token", Password: tok}, nil
	}
	return nil, nil
}

func httpsDefaultToken(host string) string {
	switch host {
	case "github.com":
		return os.Getenv("GITHUB_TOKEN")
	case "gitlab.com":
		return os.Getenv("GITLAB_TOKEN")
	default:
		return ""
	}
}

func (c *CredentialSelector) sshAgentAuth() (transport.AuthMethod, bool) {
	auth, err := gogitssh.NewSSHAgentAuth("git")
	if err != nil || auth == nil {
		return nil, false
	}
	return auth, true
}

// sshKeyFileAuth implements spec.md §4.3's on-disk ED25519 fallback,
// requiring every permission/ownership check named there before the
// key is used. No passphrase prompt is ever issued.
func (c *CredentialSelector) sshKeyFileAuth() (transport.AuthMethod, bool) {
	home := c.HomeDir
	if home == "" {
		home = os.Getenv("HOME")
	}
	if home == "" || !filepath.IsAbs(home) {
		return nil, false
	}
	if fi, err := os.Stat(home); err != nil || !fi.IsDir() {
		return nil, false
	}

	sshDir := filepath.Join(home, ".ssh")
	if !dirHasMode(sshDir, 0o700) {
		return nil, false
	}

	privPath := filepath.Join(sshDir, "id_ed25519")
	pubPath := privPath + ".pub"

	if !privateKeyIsSafe(privPath) {
		return nil, false
	}
	if !publicKeyModeOK(pubPath) {
		return nil, false
	}

	auth, err := gogitssh.NewPublicKeysFromFile("git", privPath, "")
	if err != nil {
		return nil, false
	}
	return auth, true
}

func dirHasMode(path string, mode os.FileMode) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	return fi.Mode().Perm() == mode
}

// privateKeyIsSafe checks mode 0600, ownership by the current user,
// and a size between 64 B and 8 KiB (spec.md §4.3).
func privateKeyIsSafe(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	if fi.Mode().Perm() != 0o600 {
		return false
	}
	if fi.Size() < 64 || fi.Size() > 8*1024 {
		return false
	}
	return ownedByCurrentUser(fi)
}

func publicKeyModeOK(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	m := fi.Mode().Perm()
	return m == 0o600 || m == 0o644
}
