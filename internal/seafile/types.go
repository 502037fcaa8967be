package seafile

import "time"

// Permission values Seafile reports on libraries.
const (
	PermissionReadWrite = "rw"
	PermissionReadOnly  = "r"
)

// Repo is a Seafile library (the "container" files are stored in).
type Repo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Encrypted  bool   `json:"encrypted"`
	Permission string `json:"permission"`
	Type       string `json:"type"`
	Owner      string `json:"owner"`
	Size       int64  `json:"size"`
}

// Writable reports whether files can be uploaded into the library without
// a client-side decryption key.
func (r Repo) Writable() bool {
	return !r.Encrypted && r.Permission == PermissionReadWrite
}

// UploadedFile is one entry of the ret-json=1 upload response. Name is the
// name the server stored, which differs from the requested one when a file
// of the same name already existed.
type UploadedFile struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Size int64  `json:"size"`
}

// ShareOptions controls share-link creation. Zero values mean "not set":
// no password and no expiry.
type ShareOptions struct {
	Password   string
	ExpireDays int
}

// ShareLink is a created download link.
type ShareLink struct {
	Token      string
	Link       string
	RepoID     string
	Path       string
	ExpireDate time.Time // zero when the link never expires
}

// AccountInfo summarizes the authenticated account. QuotaBytes is negative
// when the server reports an unlimited quota.
type AccountInfo struct {
	Email      string
	Name       string
	UsageBytes int64
	QuotaBytes int64
}
