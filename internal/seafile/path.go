package seafile

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SanitizePath normalizes a remote path: backslashes become slashes,
// repeated separators collapse, "." and ".." segments are dropped, and the
// result starts with exactly one "/" and has no trailing slash. The root is
// "/". Every path-accepting Client method runs its input through here, which
// is what keeps callers from escaping the configured upload directory.
func SanitizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")

	segments := strings.Split(p, "/")
	kept := make([]string, 0, len(segments))

	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			continue
		}

		kept = append(kept, s)
	}

	return "/" + strings.Join(kept, "/")
}

// JoinPath sanitizes dir and appends a file name.
func JoinPath(dir, name string) string {
	return SanitizePath(dir + "/" + name)
}

// ancestors returns every directory from the top level down to p, e.g.
// "/a/b" -> ["/a", "/a/b"]. The root has no ancestors to create.
func ancestors(p string) []string {
	clean := SanitizePath(p)
	if clean == "/" {
		return nil
	}

	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	out := make([]string, 0, len(parts))

	for i := range parts {
		out = append(out, "/"+strings.Join(parts[:i+1], "/"))
	}

	return out
}

// cleanFileName reduces a user-supplied name to a single NFC-normalized path
// element. Names that are empty after cleaning are rejected.
func cleanFileName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = norm.NFC.String(strings.TrimSpace(path.Base(name)))

	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("%w: file name is empty", ErrInvalidInput)
	}

	return name, nil
}

// pathQuery renders the "?p=" query Seafile uses to address files.
func pathQuery(p string) string {
	return url.Values{"p": {SanitizePath(p)}}.Encode()
}

// repoPath builds an API path below /api2/repos/{id}/, escaping the id.
func repoPath(repoID, suffix string) string {
	return "/api2/repos/" + url.PathEscape(repoID) + suffix
}
