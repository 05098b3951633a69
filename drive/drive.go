// Package drive is the boundary adapter for the Microsoft Graph drive API.
// It exposes a typed item model and sentinel errors so that callers never
// inspect raw Graph JSON.
package drive

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the requested item does not exist upstream.
// It is a definitive answer, distinct from transient upstream failures.
var ErrNotFound = errors.New("drive: item not found")

// ErrNoAccessToken is returned when no usable access token is available.
var ErrNoAccessToken = errors.New("drive: no access token available")

// UpstreamError represents a non-404 failure reported by the Graph API.
// Callers treat it as transient: it is never cached.
type UpstreamError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("drive: upstream error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("drive: upstream error %d", e.StatusCode)
}

// FolderFacet marks an item as a folder.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// Hashes holds the content hashes Graph reports for a file.
type Hashes struct {
	QuickXorHash string `json:"quickXorHash,omitempty"`
	Sha1Hash     string `json:"sha1Hash,omitempty"`
	Sha256Hash   string `json:"sha256Hash,omitempty"`
}

// FileFacet marks an item as a file.
type FileFacet struct {
	MimeType string  `json:"mimeType,omitempty"`
	Hashes   *Hashes `json:"hashes,omitempty"`
}

// ParentReference locates an item inside the drive.
type ParentReference struct {
	ID   string `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
}

// Item is a drive item. Exactly one of Folder and File is set; the raw
// video/image facets are carried through opaquely for the frontend.
type Item struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Size                 int64            `json:"size"`
	LastModifiedDateTime time.Time        `json:"lastModifiedDateTime"`
	Folder               *FolderFacet     `json:"folder,omitempty"`
	File                 *FileFacet       `json:"file,omitempty"`
	Video                json.RawMessage  `json:"video,omitempty"`
	Image                json.RawMessage  `json:"image,omitempty"`
	DownloadURL          string           `json:"@microsoft.graph.downloadUrl,omitempty"`
	ParentReference      *ParentReference `json:"parentReference,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (i *Item) IsFolder() bool { return i.Folder != nil }

// Page is one page of a folder listing.
type Page struct {
	Items     []*Item
	NextToken string
}
