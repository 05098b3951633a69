package api

import (
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/vvbbnn00/onedrive-index/auth"
	"github.com/vvbbnn00/onedrive-index/drive"
)

// ItemResponse is the wire form of a drive item. The id is encrypted before
// it leaves the service; raw Graph ids are accepted only re-encrypted.
// Token carries the per-file unlock proof when the caller's session already
// holds the governing gate's password.
type ItemResponse struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	Size                 int64              `json:"size"`
	LastModifiedDateTime time.Time          `json:"lastModifiedDateTime"`
	Folder               *drive.FolderFacet `json:"folder,omitempty"`
	File                 *drive.FileFacet   `json:"file,omitempty"`
	Video                json.RawMessage    `json:"video,omitempty"`
	Image                json.RawMessage    `json:"image,omitempty"`
	Token                string             `json:"odpt,omitempty"`
}

// FolderListing mirrors the Graph children envelope the frontend consumes.
type FolderListing struct {
	Value []*ItemResponse `json:"value"`
}

// ListResponse is the /api/ payload. Exactly one of File and Folder is set.
type ListResponse struct {
	File   *ItemResponse  `json:"file,omitempty"`
	Folder *FolderListing `json:"folder,omitempty"`
	Next   string         `json:"next,omitempty"`
}

// SearchResponse is the /api/search/ payload.
type SearchResponse struct {
	Value []*ItemResponse `json:"value"`
}

// itemResponse converts a drive item for the wire. gatePassword, when
// non-empty, is the plaintext of the governing gate a session has unlocked;
// it mints the per-file token. Sentinel entries never carry a token and
// have their size zeroed so the secret's length does not leak.
func (a *API) itemResponse(item *drive.Item, gatePassword string) (*ItemResponse, error) {
	enc, err := a.idCipher.Encrypt(item.ID)
	if err != nil {
		return nil, err
	}

	resp := &ItemResponse{
		ID:                   enc,
		Name:                 item.Name,
		Size:                 item.Size,
		LastModifiedDateTime: item.LastModifiedDateTime,
		Folder:               item.Folder,
		File:                 item.File,
		Video:                item.Video,
		Image:                item.Image,
	}

	if strings.EqualFold(item.Name, auth.SentinelName) {
		// The gate file's size and content hashes both leak material an
		// offline attacker can test candidate passwords against.
		resp.Size = 0
		if resp.File != nil {
			resp.File = &drive.FileFacet{MimeType: resp.File.MimeType}
		}
		return resp, nil
	}

	if gatePassword != "" {
		token, err := a.codec.Mint(gatePassword, item.ID)
		if err != nil {
			return nil, err
		}
		resp.Token = token
	}
	return resp, nil
}

// itemAbsPath maps an item's parent reference back to a drive-root-relative
// path, the coordinate system gates are configured in.
func (a *API) itemAbsPath(item *drive.Item) string {
	parent := "/"
	if item.ParentReference != nil && item.ParentReference.Path != "" {
		if p := a.drive.AbsolutePath(item.ParentReference.Path); p != "" {
			parent = p
		}
	}
	return path.Join(parent, item.Name)
}
