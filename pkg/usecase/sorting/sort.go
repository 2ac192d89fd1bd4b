package sorting

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUserNotFound         = goerr.New("user not found or failed to fetch base data")
	ErrClassificationFailed = goerr.New("failed to analyze user profile")
)

// Sort fetches the profile and recent casts of fid concurrently, then
// classifies them. Both fetches always complete before the result is judged.
func (u *UseCase) Sort(ctx context.Context, fid model.FID) (*model.UserSorting, error) {
	logger := logging.From(ctx).With("fid", fid)
	ctx = logging.With(ctx, logger)

	var (
		profile *model.Profile
		casts   []string
		eg      errgroup.Group
	)

	eg.Go(func() error {
		p, err := u.neynar.GetUser(ctx, fid)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	eg.Go(func() error {
		casts = u.neynar.GetRecentCastTexts(ctx, fid, u.castPages, u.castLimit)
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Error("failed to fetch user data", "error", err)
		return nil, goerr.Wrap(ErrUserNotFound, "failed to fetch profile",
			goerr.V("fid", fid),
			goerr.V("cause", err.Error()))
	}

	logger.Info("fetched user data", "username", profile.Username, "casts", len(casts))

	sorting, err := u.Classify(ctx, profile.Bio, casts)
	if err != nil {
		logger.Error("failed to classify user", "error", err)
		return nil, goerr.Wrap(ErrClassificationFailed, "classification failed",
			goerr.V("fid", fid),
			goerr.V("cause", err.Error()))
	}

	logger.Info("sorted user", "primary_house", sorting.PrimaryHouse)

	if u.repo != nil {
		record := &model.SortingRecord{
			ID:               model.NewRecordID(),
			FID:              fid,
			Username:         profile.Username,
			PrimaryHouse:     sorting.PrimaryHouse,
			HousePercentages: sorting.HousePercentages,
			CastCount:        len(casts),
			CreatedAt:        u.now(),
		}
		if err := u.repo.PutSorting(ctx, record); err != nil {
			logger.Warn("failed to record sorting", "error", err)
		}
	}

	return &model.UserSorting{
		Username:    profile.Username,
		PfpURL:      profile.PfpURL,
		DisplayName: profile.DisplayName,
		Hogwarts:    sorting,
	}, nil
}
