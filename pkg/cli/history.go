package cli

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/repository"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Number of sortings to list",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List recent sortings",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, c.Root().ErrWriter)

			if cfg.project == "" {
				return goerr.New("project is required to read sorting history")
			}

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			return printHistory(ctx, c.Root().Writer, repo, int(limit))
		},
	}
}

func printHistory(ctx context.Context, w io.Writer, repo repository.Repository, limit int) error {
	records, err := repo.ListSortings(ctx, limit)
	if err != nil {
		return goerr.Wrap(err, "failed to list sortings")
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No sortings found")
		return nil
	}

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d%%\t%d casts\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.FID,
			r.Username,
			r.PrimaryHouse,
			primaryPercent(r),
			r.CastCount,
		)
	}

	return nil
}

func primaryPercent(r *model.SortingRecord) int {
	return int(math.Round(r.HousePercentages[r.PrimaryHouse]))
}
