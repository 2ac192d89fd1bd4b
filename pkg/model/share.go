package model

import (
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	// ShareFolderPrefix is the object storage folder of share images
	ShareFolderPrefix = "what-x-are-you/"
)

var (
	ErrInvalidShareRequest = goerr.New("invalid share request")
)

// ShareRequest is the body of a create-share-link call
type ShareRequest struct {
	House       House  `json:"house"`
	DisplayName string `json:"displayName"`
	PfpURL      string `json:"pfpUrl,omitempty"`
	FID         FID    `json:"fid"`
}

// Validate checks required parameters
func (r *ShareRequest) Validate() error {
	if r.House == "" || r.DisplayName == "" || r.FID == 0 {
		return goerr.Wrap(ErrInvalidShareRequest, "missing required parameters: house, displayName, fid")
	}
	return nil
}

// ShareLink is the response of a create-share-link call
type ShareLink struct {
	GeneratedImageURL string `json:"generatedImageR2Url"`
	ShareablePageURL  string `json:"shareablePageUrl"`
	ImageFileName     string `json:"imageFileName"`
}

// ShareArtifact is created once per share action and never deduplicated
type ShareArtifact struct {
	ImageBytes       []byte
	StorageKey       string
	PublicImageURL   string
	ShareablePageURL string
	ImageFileName    string
}

// ShareImageFileName returns the file name of a share image taken at ts
func ShareImageFileName(fid FID, ts time.Time) string {
	return fmt.Sprintf("share-image-%d-%d.png", fid, ts.UnixMilli())
}

// ShareImageKey returns the object storage key of a share image file name
func ShareImageKey(fileName string) string {
	return ShareFolderPrefix + fileName
}

// Link converts the artifact to its API response form
func (a *ShareArtifact) Link() *ShareLink {
	return &ShareLink{
		GeneratedImageURL: a.PublicImageURL,
		ShareablePageURL:  a.ShareablePageURL,
		ImageFileName:     a.ImageFileName,
	}
}
