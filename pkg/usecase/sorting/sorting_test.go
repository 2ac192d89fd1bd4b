package sorting_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sortinghat/pkg/adapter"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/repository"
	"github.com/m-mizutani/sortinghat/pkg/usecase/sorting"
	"google.golang.org/genai"
)

const ravenclawJSON = `{
  "primaryHouse": "Ravenclaw",
  "housePercentages": {"Gryffindor": 40, "Slytherin": 35.5, "Hufflepuff": 55, "Ravenclaw": 91},
  "summary": "Hmm, a curious mind... Ravenclaw!",
  "evidence": [
    {"trait": "Curiosity", "quotes": ["reading about zk proofs"], "explanation": "You dig into hard topics."},
    {"trait": "Wit", "quotes": ["pun intended", "another pun"], "explanation": "Your jokes are clever."},
    {"trait": "Logic", "quotes": ["let's reason it out"], "explanation": "You argue from first principles."}
  ],
  "counterArguments": {
    "Gryffindor": "You prefer thinking to charging in.",
    "Slytherin": "Ambition is not your driver.",
    "Hufflepuff": "You value ideas over routine.",
    "Ravenclaw": "This should be removed."
  }
}`

type mockGemini struct {
	mu       sync.Mutex
	calls    int
	prompts  []string
	configs  []*genai.GenerateContentConfig
	response string
	err      error
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.configs = append(m.configs, config)
	for _, c := range contents {
		for _, p := range c.Parts {
			m.prompts = append(m.prompts, p.Text)
		}
	}

	if m.err != nil {
		return nil, m.err
	}

	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: m.response}},
				},
			},
		},
	}, nil
}

type mockNeynar struct {
	profile    *model.Profile
	profileErr error
	casts      []string
	castCalls  int
	pages      int
	limit      int
}

func (m *mockNeynar) GetUser(ctx context.Context, fid model.FID) (*model.Profile, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	return m.profile, nil
}

func (m *mockNeynar) GetRecentCastTexts(ctx context.Context, fid model.FID, pages, limit int) []string {
	m.castCalls++
	m.pages = pages
	m.limit = limit
	return m.casts
}

func newUseCase(t *testing.T, neynar adapter.Neynar, gemini adapter.Gemini, opts ...sorting.Option) *sorting.UseCase {
	t.Helper()
	uc, err := sorting.New(neynar, gemini, opts...)
	gt.NoError(t, err)
	return uc
}

func TestParseSortingDirect(t *testing.T) {
	result, err := sorting.ParseSorting(context.Background(), ravenclawJSON)
	gt.NoError(t, err)

	gt.Equal(t, result.PrimaryHouse, model.HouseRavenclaw)
	gt.A(t, result.Evidence).Length(3)
	gt.Equal(t, result.HousePercentages[model.HouseSlytherin], 35.5)

	_, hasPrimary := result.CounterArguments[model.HouseRavenclaw]
	gt.False(t, hasPrimary)
	gt.Equal(t, len(result.CounterArguments), 3)
}

func TestParseSortingFencedMatchesDirect(t *testing.T) {
	ctx := context.Background()
	direct, err := sorting.ParseSorting(ctx, ravenclawJSON)
	gt.NoError(t, err)

	wrapped := "Here is the analysis:\n```json\n" + ravenclawJSON + "\n```\nGood luck!"
	fenced, err := sorting.ParseSorting(ctx, wrapped)
	gt.NoError(t, err)

	gt.Equal(t, fenced, direct)
}

func TestParseSortingFailures(t *testing.T) {
	testCases := map[string]struct {
		raw    string
		target error
	}{
		"not json at all": {
			raw:    "The Sorting Hat is thinking...",
			target: sorting.ErrUnparsableResponse,
		},
		"fenced block is broken": {
			raw:    "```json\n{\"primaryHouse\": \n```",
			target: sorting.ErrUnparsableResponse,
		},
		"fence tag is case sensitive": {
			raw:    "```JSON\n" + ravenclawJSON + "\n```",
			target: sorting.ErrUnparsableResponse,
		},
		"two evidence items": {
			raw: `{"primaryHouse":"Gryffindor","housePercentages":{"Gryffindor":80},"summary":"s",
				"evidence":[{"trait":"a","quotes":["q"],"explanation":"e"},{"trait":"b","quotes":["q"],"explanation":"e"}],
				"counterArguments":{}}`,
			target: model.ErrInvalidSorting,
		},
		"missing primary house": {
			raw:    strings.Replace(ravenclawJSON, `"primaryHouse": "Ravenclaw",`, "", 1),
			target: model.ErrInvalidSorting,
		},
		"missing percentages": {
			raw:    strings.Replace(ravenclawJSON, `"housePercentages": {"Gryffindor": 40, "Slytherin": 35.5, "Hufflepuff": 55, "Ravenclaw": 91},`, "", 1),
			target: model.ErrInvalidSorting,
		},
		"too many quotes": {
			raw:    strings.Replace(ravenclawJSON, `["pun intended", "another pun"]`, `["a", "b", "c"]`, 1),
			target: model.ErrInvalidSorting,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			result, err := sorting.ParseSorting(context.Background(), tc.raw)
			gt.Nil(t, result)
			gt.True(t, errors.Is(err, tc.target))
		})
	}
}

func TestParseSortingDropsEmptyCounterArguments(t *testing.T) {
	raw := strings.Replace(ravenclawJSON, `"Slytherin": "Ambition is not your driver."`, `"Slytherin": ""`, 1)
	result, err := sorting.ParseSorting(context.Background(), raw)
	gt.NoError(t, err)

	gt.Equal(t, result.CounterArguments, map[model.House]string{
		model.HouseGryffindor: "You prefer thinking to charging in.",
		model.HouseHufflepuff: "You value ideas over routine.",
	})
}

func TestClassifyTruncatesCasts(t *testing.T) {
	gemini := &mockGemini{response: ravenclawJSON}
	uc := newUseCase(t, &mockNeynar{}, gemini)

	casts := make([]string, 80)
	for i := range casts {
		casts[i] = fmt.Sprintf("cast-%03d", i)
	}

	result, err := uc.Classify(context.Background(), "builder of things", casts)
	gt.NoError(t, err)
	gt.Equal(t, result.PrimaryHouse, model.HouseRavenclaw)

	gt.Equal(t, gemini.calls, 1)
	prompt := gemini.prompts[0]
	gt.S(t, prompt).Contains("cast-049")
	gt.S(t, prompt).NotContains("cast-050")
	gt.S(t, prompt).Contains("Recent Casts (max 50)")
	gt.S(t, prompt).Contains("additional casts truncated")
	gt.S(t, prompt).Contains("Bio: builder of things")

	config := gemini.configs[0]
	gt.Equal(t, config.ResponseMIMEType, "application/json")
	gt.V(t, config.ResponseSchema).NotNil()
	gt.Equal(t, config.ResponseSchema.Properties["primaryHouse"].Enum, []string{"Gryffindor", "Hufflepuff", "Ravenclaw", "Slytherin"})
	gt.Equal(t, *config.ResponseSchema.Properties["evidence"].MinItems, int64(3))
}

func TestClassifyWithoutInputSkipsAPI(t *testing.T) {
	gemini := &mockGemini{response: ravenclawJSON}
	uc := newUseCase(t, &mockNeynar{}, gemini)

	result, err := uc.Classify(context.Background(), "", nil)
	gt.Nil(t, result)
	gt.True(t, errors.Is(err, sorting.ErrNoInput))
	gt.Equal(t, gemini.calls, 0)
}

func TestClassifyBioOnly(t *testing.T) {
	gemini := &mockGemini{response: ravenclawJSON}
	uc := newUseCase(t, &mockNeynar{}, gemini)

	_, err := uc.Classify(context.Background(), "I read a lot", nil)
	gt.NoError(t, err)
	gt.Equal(t, gemini.calls, 1)
	gt.S(t, gemini.prompts[0]).Contains("Recent Casts (max 0)")
}

func TestClassifyDisabled(t *testing.T) {
	uc := newUseCase(t, &mockNeynar{}, nil)

	result, err := uc.Classify(context.Background(), "bio", []string{"cast"})
	gt.Nil(t, result)
	gt.True(t, errors.Is(err, sorting.ErrClassifierDisabled))
}

func TestSort(t *testing.T) {
	neynar := &mockNeynar{
		profile: &model.Profile{
			Username:    "alice",
			DisplayName: "Alice",
			PfpURL:      "http://x/a.png",
		},
		casts: []string{"gm", "reading papers all day"},
	}
	gemini := &mockGemini{response: ravenclawJSON}
	repo := repository.NewMemory()
	uc := newUseCase(t, neynar, gemini, sorting.WithRepository(repo))

	ctx := context.Background()
	result, err := uc.Sort(ctx, 4407)
	gt.NoError(t, err)

	gt.Equal(t, result.Username, "alice")
	gt.Equal(t, result.DisplayName, "Alice")
	gt.Equal(t, result.PfpURL, "http://x/a.png")
	gt.Equal(t, result.Hogwarts.PrimaryHouse, model.HouseRavenclaw)
	gt.Equal(t, neynar.pages, adapter.DefaultCastPages)
	gt.Equal(t, neynar.limit, adapter.DefaultCastLimit)

	records, err := repo.ListSortings(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, records).Length(1)
	gt.Equal(t, records[0].FID, model.FID(4407))
	gt.Equal(t, records[0].CastCount, 2)
}

func TestSortProfileFailureWinsOverCasts(t *testing.T) {
	neynar := &mockNeynar{
		profileErr: adapter.ErrUserNotFound,
		casts:      []string{"fetched anyway"},
	}
	gemini := &mockGemini{response: ravenclawJSON}
	uc := newUseCase(t, neynar, gemini)

	result, err := uc.Sort(context.Background(), 4407)
	gt.Nil(t, result)
	gt.True(t, errors.Is(err, sorting.ErrUserNotFound))
	gt.Equal(t, neynar.castCalls, 1)
	gt.Equal(t, gemini.calls, 0)
}

func TestSortClassificationFailure(t *testing.T) {
	neynar := &mockNeynar{
		profile: &model.Profile{Username: "bob"},
		casts:   []string{"gm"},
	}
	gemini := &mockGemini{response: "not json"}
	uc := newUseCase(t, neynar, gemini)

	result, err := uc.Sort(context.Background(), 42)
	gt.Nil(t, result)
	gt.True(t, errors.Is(err, sorting.ErrClassificationFailed))
}
