package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/ogimage"
)

//go:embed templates/*.html
var templateFS embed.FS

// Sorter sorts a user into a house
type Sorter interface {
	Sort(ctx context.Context, fid model.FID) (*model.UserSorting, error)
}

// Sharer stores a share image and returns its links
type Sharer interface {
	CreateShareLink(ctx context.Context, req *model.ShareRequest) (*model.ShareArtifact, error)
}

// Renderer renders share images
type Renderer interface {
	Render(ctx context.Context, p ogimage.Params) ([]byte, error)
}

// Server is the HTTP surface of sortinghat
type Server struct {
	engine   *gin.Engine
	sorter   Sorter
	sharer   Sharer
	renderer Renderer
	page     PageConfig
	origins  []string
}

type Option func(*Server)

// WithPage configures the share page
func WithPage(cfg PageConfig) Option {
	return func(s *Server) {
		s.page = cfg
	}
}

// WithCORS allows cross origin API calls from origins. "*" allows all.
func WithCORS(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

func New(sorter Sorter, sharer Sharer, renderer Renderer, opts ...Option) *Server {
	s := &Server{
		sorter:   sorter,
		sharer:   sharer,
		renderer: renderer,
		page:     DefaultPageConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	if len(s.origins) > 0 {
		corsConfig := cors.DefaultConfig()
		if len(s.origins) == 1 && s.origins[0] == "*" {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = s.origins
		}
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
		engine.Use(cors.New(corsConfig))
	}

	engine.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	engine.GET("/", s.getPage)
	api := engine.Group("/api")
	{
		api.GET("/user", s.getUser)
		api.GET("/og", s.getOG)
		api.POST("/create-share-link", s.createShareLink)
	}

	s.engine = engine
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}
