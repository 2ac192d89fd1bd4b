package frame

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/model"
)

const (
	EnvFID = "FARCASTER_FID"

	composeBaseURL = "https://warpcast.com/~/compose"
)

var (
	ErrComposeArgs = goerr.New("cast text and embed URL are required for sharing")
)

// urlPrinter stands in for a host URL opener by printing the URL
type urlPrinter struct {
	w io.Writer
}

func (p urlPrinter) OpenURL(ctx context.Context, u string) error {
	if p.w == nil {
		return goerr.New("no output to open url", goerr.V("url", u))
	}
	if _, err := fmt.Fprintf(p.w, "Open this URL to share: %s\n", u); err != nil {
		return goerr.Wrap(err, "failed to write url")
	}
	return nil
}

// EnvHost reads the FID from the FARCASTER_FID environment variable on every
// poll
type EnvHost struct {
	urlPrinter
	lookup func(string) (string, bool)
}

func NewEnvHost(w io.Writer) *EnvHost {
	return &EnvHost{
		urlPrinter: urlPrinter{w: w},
		lookup:     os.LookupEnv,
	}
}

func (h *EnvHost) UserFID() (model.FID, bool) {
	v, ok := h.lookup(EnvFID)
	if !ok {
		return 0, false
	}
	fid, err := model.ParseFID(strings.TrimSpace(v))
	if err != nil || fid.Validate() != nil {
		return 0, false
	}
	return fid, true
}

// ContextFileHost reads a frame context JSON document that the embedding
// runtime writes to Path. The file may appear after polling started.
type ContextFileHost struct {
	urlPrinter
	Path string
}

func NewContextFileHost(path string, w io.Writer) *ContextFileHost {
	return &ContextFileHost{
		urlPrinter: urlPrinter{w: w},
		Path:       path,
	}
}

func (h *ContextFileHost) UserFID() (model.FID, bool) {
	data, err := os.ReadFile(h.Path)
	if err != nil {
		return 0, false
	}
	fid, err := ParseContext(data)
	if err != nil {
		return 0, false
	}
	return fid, true
}

// ParseContext extracts the user FID from a frame context document. Some
// hosts wrap the user object into another one as {"user": {"fid": .., "user":
// {...}}}; the inner object wins then. fid must be a JSON number.
func ParseContext(data []byte) (model.FID, error) {
	var doc struct {
		User map[string]any `json:"user"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, goerr.Wrap(ErrNoFrameContext, "frame context is not JSON", goerr.V("cause", err.Error()))
	}
	if doc.User == nil {
		return 0, goerr.Wrap(ErrNoFrameContext, "frame context has no user")
	}

	user := doc.User
	if _, hasFID := user["fid"]; hasFID {
		if nested, ok := user["user"].(map[string]any); ok && nested != nil {
			user = nested
		}
	}

	v, ok := user["fid"].(float64)
	if !ok || v != math.Trunc(v) || v <= 0 {
		return 0, goerr.Wrap(ErrNoFrameContext, "fid is missing or invalid in frame context",
			goerr.V("fid", user["fid"]))
	}
	return model.FID(v), nil
}

// ComposeURL builds a compose intent URL with text and one embed
func ComposeURL(text, embed string) (string, error) {
	if text == "" || embed == "" {
		return "", ErrComposeArgs
	}
	return composeBaseURL + "?text=" + encodeComponent(text) + "&embeds[]=" + encodeComponent(embed), nil
}

// Compose opens a compose intent on host
func Compose(ctx context.Context, host Host, text, embed string) error {
	u, err := ComposeURL(text, embed)
	if err != nil {
		return err
	}
	if err := host.OpenURL(ctx, u); err != nil {
		return goerr.Wrap(err, "failed to open compose intent")
	}
	return nil
}

// encodeComponent percent-encodes every byte of s except ASCII letters,
// digits and -_.!~*'(), the set browsers leave as is in URI components
func encodeComponent(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreservedComponent(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
