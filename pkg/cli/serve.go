package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/ogimage"
	"github.com/m-mizutani/sortinghat/pkg/server"
	"github.com/m-mizutani/sortinghat/pkg/usecase/share"
	"github.com/m-mizutani/sortinghat/pkg/usecase/sorting"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	var (
		cfg     config
		addr    string
		appURL  string
		origins []string
		page    = server.DefaultPageConfig()
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address",
			Value:       "127.0.0.1:3000",
			Sources:     cli.EnvVars("SORTINGHAT_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "app-url",
			Usage:       "Public base URL of this app. Required to create share links",
			Sources:     cli.EnvVars("APP_URL", "NEXT_PUBLIC_APP_URL"),
			Destination: &appURL,
		},
		&cli.StringSliceFlag{
			Name:        "cors-origin",
			Usage:       "Allowed CORS origin of the API (\"*\" allows all)",
			Sources:     cli.EnvVars("SORTINGHAT_CORS_ORIGINS"),
			Destination: &origins,
		},
		&cli.StringFlag{
			Name:        "frame-name",
			Usage:       "Name of the launch_frame action",
			Value:       page.FrameName,
			Sources:     cli.EnvVars("SORTINGHAT_FRAME_NAME"),
			Destination: &page.FrameName,
		},
		&cli.StringFlag{
			Name:        "splash-image-url",
			Usage:       "Splash image URL of the launch_frame action",
			Value:       page.SplashImageURL,
			Sources:     cli.EnvVars("SORTINGHAT_SPLASH_IMAGE_URL"),
			Destination: &page.SplashImageURL,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, classifierFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the sorting API and share page server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx, c.Root().ErrWriter)
			logger := logging.From(ctx)

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			sorter, err := sorting.New(cfg.newNeynar(ctx), gemini, sorting.WithRepository(repo))
			if err != nil {
				return goerr.Wrap(err, "failed to create sorting usecase")
			}

			if appURL == "" {
				logger.Warn("app-url is not set, share links cannot be created")
			}
			sharer := share.New(appURL, storage, share.WithRepository(repo))

			renderer, err := ogimage.New()
			if err != nil {
				return goerr.Wrap(err, "failed to create share image renderer")
			}

			if appURL != "" {
				page.AppURL = strings.TrimSuffix(appURL, "/")
			}
			page.PublicImageBase = cfg.publicImageBase()

			gin.SetMode(gin.ReleaseMode)
			srv := server.New(sorter, sharer, renderer,
				server.WithPage(page),
				server.WithCORS(origins...),
			)

			return serve(ctx, addr, srv)
		},
	}
}

// serve runs handler on addr until ctx is canceled or SIGINT/SIGTERM arrives
func serve(ctx context.Context, addr string, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.From(ctx)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return logging.With(context.Background(), logger)
		},
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return goerr.Wrap(err, "server error", goerr.V("addr", addr))
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown server")
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
