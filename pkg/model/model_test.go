package model_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sortinghat/pkg/model"
)

func TestParseFID(t *testing.T) {
	testCases := map[string]struct {
		input   string
		want    model.FID
		wantErr bool
	}{
		"plain integer":  {input: "4407", want: 4407},
		"empty":          {input: "", wantErr: true},
		"alphabetic":     {input: "abc", wantErr: true},
		"trailing chars": {input: "12abc", wantErr: true},
		"decimal":        {input: "1.5", wantErr: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			fid, err := model.ParseFID(tc.input)
			if tc.wantErr {
				gt.True(t, errors.Is(err, model.ErrInvalidFID))
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, fid, tc.want)
			gt.Equal(t, fid.String(), tc.input)
		})
	}
}

func TestFIDValidate(t *testing.T) {
	gt.NoError(t, model.FID(1).Validate())
	gt.True(t, errors.Is(model.FID(0).Validate(), model.ErrInvalidFID))
	gt.True(t, errors.Is(model.FID(-3).Validate(), model.ErrInvalidFID))
}

func TestHouse(t *testing.T) {
	for _, h := range model.Houses() {
		gt.NoError(t, h.Validate())
		gt.A(t, h.Others()).Length(3)
	}
	gt.True(t, errors.Is(model.House("Durmstrang").Validate(), model.ErrInvalidHouse))
	gt.Equal(t, model.HouseSlytherin.Others(), []model.House{
		model.HouseGryffindor,
		model.HouseHufflepuff,
		model.HouseRavenclaw,
	})
}

func validSorting() *model.Sorting {
	ev := model.Evidence{Trait: "Wit", Quotes: []string{"q"}, Explanation: "e"}
	return &model.Sorting{
		PrimaryHouse: model.HouseRavenclaw,
		HousePercentages: map[model.House]float64{
			model.HouseGryffindor: 0,
			model.HouseHufflepuff: 85,
			model.HouseRavenclaw:  100,
			model.HouseSlytherin:  12.5,
		},
		Summary:  "Ravenclaw!",
		Evidence: []model.Evidence{ev, ev, ev},
		CounterArguments: map[model.House]string{
			model.HouseGryffindor: "g",
			model.HouseSlytherin:  "s",
			model.HouseHufflepuff: "h",
		},
	}
}

func TestSortingValidate(t *testing.T) {
	gt.NoError(t, validSorting().Validate())

	testCases := map[string]func(s *model.Sorting){
		"no primary":         func(s *model.Sorting) { s.PrimaryHouse = "" },
		"unknown primary":    func(s *model.Sorting) { s.PrimaryHouse = "Muggle" },
		"no percentages":     func(s *model.Sorting) { s.HousePercentages = nil },
		"missing house":      func(s *model.Sorting) { delete(s.HousePercentages, model.HouseSlytherin) },
		"negative affinity":  func(s *model.Sorting) { s.HousePercentages[model.HouseGryffindor] = -1 },
		"affinity over 100":  func(s *model.Sorting) { s.HousePercentages[model.HouseHufflepuff] = 100.5 },
		"NaN affinity":       func(s *model.Sorting) { s.HousePercentages[model.HouseSlytherin] = math.NaN() },
		"no counters":        func(s *model.Sorting) { s.CounterArguments = nil },
		"four evidence":      func(s *model.Sorting) { s.Evidence = append(s.Evidence, s.Evidence[0]) },
		"no quotes":          func(s *model.Sorting) { s.Evidence[1].Quotes = nil },
		"three quotes":       func(s *model.Sorting) { s.Evidence[2].Quotes = []string{"a", "b", "c"} },
		"evidence is absent": func(s *model.Sorting) { s.Evidence = nil },
	}

	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			s := validSorting()
			s.Evidence = append([]model.Evidence{}, s.Evidence...)
			mutate(s)
			gt.True(t, errors.Is(s.Validate(), model.ErrInvalidSorting))
		})
	}
}

func TestFilterCounterArguments(t *testing.T) {
	s := validSorting()
	s.CounterArguments[model.HouseRavenclaw] = "should go"
	s.CounterArguments[model.HouseSlytherin] = ""

	gt.Equal(t, s.FilterCounterArguments(), 2)
	gt.Equal(t, s.CounterArguments, map[model.House]string{
		model.HouseGryffindor: "g",
		model.HouseHufflepuff: "h",
	})
}

func TestShareNaming(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	name := model.ShareImageFileName(42, ts)
	gt.Equal(t, name, "share-image-42-1700000000123.png")
	gt.Equal(t, model.ShareImageKey(name), "what-x-are-you/share-image-42-1700000000123.png")
}

func TestShareRequestValidate(t *testing.T) {
	req := &model.ShareRequest{House: model.HouseGryffindor, DisplayName: "Harry", FID: 7}
	gt.NoError(t, req.Validate())

	for name, r := range map[string]*model.ShareRequest{
		"no house": {DisplayName: "Harry", FID: 7},
		"no name":  {House: model.HouseGryffindor, FID: 7},
		"no fid":   {House: model.HouseGryffindor, DisplayName: "Harry"},
	} {
		t.Run(name, func(t *testing.T) {
			gt.True(t, errors.Is(r.Validate(), model.ErrInvalidShareRequest))
		})
	}
}

func TestShareArtifactLink(t *testing.T) {
	a := &model.ShareArtifact{
		PublicImageURL:   "https://cdn.example/what-x-are-you/x.png",
		ShareablePageURL: "https://app.example?image=x.png",
		ImageFileName:    "x.png",
	}
	gt.Equal(t, a.Link(), &model.ShareLink{
		GeneratedImageURL: "https://cdn.example/what-x-are-you/x.png",
		ShareablePageURL:  "https://app.example?image=x.png",
		ImageFileName:     "x.png",
	})
}
