package sorting

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
	"google.golang.org/genai"
)

// maxPromptCasts bounds the request size. It is independent of the fetch cap.
const maxPromptCasts = 50

var (
	ErrNoInput            = goerr.New("neither bio nor casts are provided")
	ErrClassifierDisabled = goerr.New("gemini api key is not set")
	ErrUnparsableResponse = goerr.New("failed to parse classifier response as JSON")
)

var fencedJSON = regexp.MustCompile("(?s)```json\n(.*\n?)```")

// Classify asks the model to sort a user by bio and casts
func (u *UseCase) Classify(ctx context.Context, bio string, casts []string) (*model.Sorting, error) {
	logger := logging.From(ctx)

	if u.gemini == nil {
		logger.Error("cannot classify: gemini api key is not set")
		return nil, ErrClassifierDisabled
	}
	if len(casts) == 0 {
		logger.Warn("no casts provided for classification")
		if bio == "" {
			return nil, ErrNoInput
		}
	}

	truncated := len(casts) > maxPromptCasts
	if truncated {
		casts = casts[:maxPromptCasts]
	}

	var buf bytes.Buffer
	if err := sortingPromptTmpl.Execute(&buf, map[string]any{
		"Houses":    u.houses,
		"Bio":       bio,
		"Casts":     casts,
		"Truncated": truncated,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute sorting prompt template")
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.7),
		TopK:             genai.Ptr[float32](40),
		TopP:             genai.Ptr[float32](0.9),
		MaxOutputTokens:  2048,
		ResponseMIMEType: "application/json",
		ResponseSchema:   u.schema,
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	logger.Info("sending sorting request to gemini", "casts", len(casts), "has_bio", bio != "")

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate sorting")
	}
	if resp == nil {
		return nil, goerr.New("empty response from gemini")
	}

	return ParseSorting(ctx, resp.Text())
}

// ParseSorting decodes a raw classifier response. When the text is not JSON,
// a ```json fenced block inside it is tried once. The result is validated and
// counter arguments of the primary house are removed.
func ParseSorting(ctx context.Context, raw string) (*model.Sorting, error) {
	logger := logging.From(ctx)

	var sorting model.Sorting
	if err := json.Unmarshal([]byte(raw), &sorting); err != nil {
		logger.Warn("failed to parse classifier response, trying fenced block", "error", err, "raw", raw)

		match := fencedJSON.FindStringSubmatch(raw)
		if len(match) < 2 || match[1] == "" {
			return nil, goerr.Wrap(ErrUnparsableResponse, "no fenced JSON block", goerr.V("raw", raw))
		}

		sorting = model.Sorting{}
		if err := json.Unmarshal([]byte(match[1]), &sorting); err != nil {
			return nil, goerr.Wrap(ErrUnparsableResponse, "fenced block is not JSON",
				goerr.V("raw", raw),
				goerr.V("cause", err.Error()))
		}
	}

	if err := sorting.Validate(); err != nil {
		return nil, err
	}

	if n := sorting.FilterCounterArguments(); n != len(model.Houses())-1 {
		logger.Warn("unexpected number of counter arguments after filtering",
			"count", n,
			"primary", sorting.PrimaryHouse)
	}

	return &sorting, nil
}
