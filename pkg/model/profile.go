package model

import (
	"strconv"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidFID = goerr.New("invalid fid")
)

// FID is a Farcaster user ID
type FID int64

// ParseFID parses a decimal FID. Anything other than a plain integer is rejected.
func ParseFID(s string) (FID, error) {
	if s == "" {
		return 0, goerr.Wrap(ErrInvalidFID, "fid is empty")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, goerr.Wrap(ErrInvalidFID, "fid is not numeric", goerr.V("fid", s))
	}
	return FID(v), nil
}

func (x FID) String() string {
	return strconv.FormatInt(int64(x), 10)
}

// Validate checks the FID can identify a user
func (x FID) Validate() error {
	if x <= 0 {
		return goerr.Wrap(ErrInvalidFID, "fid must be positive", goerr.V("fid", int64(x)))
	}
	return nil
}

type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
	Bio         string `json:"-"`
}

// Name returns the best human readable name of the profile
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}
