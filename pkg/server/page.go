package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
)

const PlaceholderImageURL = "https://placehold.co/600x400/orange/white/png?text=Preview+Image"

// PageConfig holds the values embedded into the share page meta tags
type PageConfig struct {
	AppURL                string
	PublicImageBase       string
	FrameName             string
	SplashImageURL        string
	SplashBackgroundColor string
}

func DefaultPageConfig() PageConfig {
	return PageConfig{
		AppURL:                "http://localhost:3000",
		FrameName:             "sortinghat",
		SplashImageURL:        "https://placehold.co/200x200/blue/white/png?text=Splash+Image",
		SplashBackgroundColor: "#ffffff",
	}
}

type frameAction struct {
	Type                  string `json:"type"`
	Name                  string `json:"name"`
	URL                   string `json:"url"`
	SplashImageURL        string `json:"splashImageUrl"`
	SplashBackgroundColor string `json:"splashBackgroundColor"`
}

type frameButton struct {
	Title  string      `json:"title"`
	Action frameAction `json:"action"`
}

type frameEmbed struct {
	Version  string      `json:"version"`
	ImageURL string      `json:"imageUrl"`
	Button   frameButton `json:"button"`
}

// imageURL returns the public URL of a stored share image, or the placeholder
func (p PageConfig) imageURL(image string) string {
	if image == "" || p.PublicImageBase == "" || strings.ContainsAny(image, "/\\") {
		return PlaceholderImageURL
	}
	return strings.TrimSuffix(p.PublicImageBase, "/") + "/" + model.ShareImageKey(image)
}

func (s *Server) getPage(c *gin.Context) {
	image := c.Query("image")
	imageURL := s.page.imageURL(image)
	if image != "" && imageURL == PlaceholderImageURL {
		logging.From(c.Request.Context()).Warn("public image base is not set, cannot use share image", "image", image)
	}

	embed, err := json.Marshal(frameEmbed{
		Version:  "next",
		ImageURL: imageURL,
		Button: frameButton{
			Title: "Try now!",
			Action: frameAction{
				Type:                  "launch_frame",
				Name:                  s.page.FrameName,
				URL:                   s.page.AppURL,
				SplashImageURL:        s.page.SplashImageURL,
				SplashBackgroundColor: s.page.SplashBackgroundColor,
			},
		},
	})
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to build frame metadata")
		return
	}

	c.HTML(http.StatusOK, "page.html", gin.H{
		"FrameEmbed": string(embed),
		"ImageURL":   imageURL,
		"AppURL":     s.page.AppURL,
	})
}
