package sorting

import (
	_ "embed"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/adapter"
	"github.com/m-mizutani/sortinghat/pkg/repository"
	"google.golang.org/genai"
	"gopkg.in/yaml.v3"
)

//go:embed prompt/sorting.md
var sortingPromptRaw string

//go:embed prompt/houses.yaml
var housesRaw []byte

var sortingPromptTmpl = template.Must(template.New("sorting").Parse(sortingPromptRaw))

type houseDef struct {
	Name    string `yaml:"name"`
	Virtues string `yaml:"virtues"`
	Traits  string `yaml:"traits"`
}

func loadHouses(raw []byte) ([]houseDef, error) {
	var doc struct {
		Houses []houseDef `yaml:"houses"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse house definitions")
	}
	if len(doc.Houses) == 0 {
		return nil, goerr.New("no house definitions")
	}
	return doc.Houses, nil
}

// UseCase fetches a user's profile and casts and sorts them into a house
type UseCase struct {
	neynar    adapter.Neynar
	gemini    adapter.Gemini
	repo      repository.Repository
	castPages int
	castLimit int
	houses    []houseDef
	schema    *genai.Schema
	now       func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithRepository records every completed sorting in repo
func WithRepository(repo repository.Repository) Option {
	return func(uc *UseCase) {
		uc.repo = repo
	}
}

// WithCastPages sets the page count and page size of cast fetching
func WithCastPages(pages, limit int) Option {
	return func(uc *UseCase) {
		uc.castPages = pages
		uc.castLimit = limit
	}
}

// New creates a sorting UseCase. gemini may be nil, in which case every
// classification fails with ErrClassifierDisabled.
func New(neynar adapter.Neynar, gemini adapter.Gemini, opts ...Option) (*UseCase, error) {
	houses, err := loadHouses(housesRaw)
	if err != nil {
		return nil, err
	}

	schema, err := toGenaiSchema(sortingSchema(houses))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build response schema")
	}

	uc := &UseCase{
		neynar:    neynar,
		gemini:    gemini,
		castPages: adapter.DefaultCastPages,
		castLimit: adapter.DefaultCastLimit,
		houses:    houses,
		schema:    schema,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc, nil
}
