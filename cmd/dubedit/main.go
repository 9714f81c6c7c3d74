// dubedit is the editing console daemon for the AI dubbing pipeline. It
// connects the browser UI (over the websocket bridge) to the dubbing backend
// and owns all editing state: sentence timeline, playback, refinement, and
// exports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nipun-das/ai-dubbing-tool/internal/audio"
	"github.com/nipun-das/ai-dubbing-tool/internal/backend"
	"github.com/nipun-das/ai-dubbing-tool/internal/bridge"
	"github.com/nipun-das/ai-dubbing-tool/internal/config"
	"github.com/nipun-das/ai-dubbing-tool/internal/inbox"
	"github.com/nipun-das/ai-dubbing-tool/internal/pidfile"
	"github.com/nipun-das/ai-dubbing-tool/internal/session"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

var (
	cfgFile   string
	exportDir string
	log       = logrus.New()
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "dubedit",
		Short:   "Editing console for the AI dubbing pipeline",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default dubedit.yaml)")
	root.PersistentFlags().StringVar(&exportDir, "export-dir", "exports", "directory for downloaded exports")

	root.AddCommand(dubCmd())
	return root
}

// setupSession builds the shared session stack from configuration.
func setupSession(cfg *config.Config) (*session.Session, error) {
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	presets, err := config.LoadPresets(cfg.PresetsPath)
	if err != nil {
		return nil, err
	}

	client := backend.NewClient(backend.Config{
		BaseURL:        cfg.BackendURL,
		TimeoutSeconds: cfg.RequestTimeoutSeconds,
		Logger:         log,
	})
	engine := audio.NewEngine(audio.Config{Logger: log})

	return session.New(session.Config{
		Client:         client,
		Engine:         engine,
		Settings:       cfg.Dub,
		Presets:        presets,
		StrictTimeline: cfg.StrictTimeline,
		ExportDir:      exportDir,
		Logger:         log,
	}), nil
}

// runServe runs the daemon: bridge for the UI, inbox for dropped files,
// signal-driven shutdown.
func runServe() error {
	godotenv.Load() // optional .env, missing file is fine

	pf, err := pidfile.Acquire(pidfile.DefaultPath())
	if err != nil {
		return err
	}
	defer pf.Release()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	sess, err := setupSession(cfg)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"version": Version,
		"backend": cfg.BackendURL,
		"session": sess.ID(),
	}).Info("dubedit starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := bridge.New(bridge.Config{
		Addr:    cfg.BridgeAddr,
		Session: sess,
		Logger:  log,
	})
	if err := srv.Start(); err != nil {
		return err
	}

	if cfg.InboxDir != "" {
		watcher, err := inbox.New(inbox.Config{
			Dir:    cfg.InboxDir,
			Logger: log,
			Handler: func(ctx context.Context, path string) {
				if _, err := sess.StartDub(ctx, path); err != nil {
					log.WithField("file", filepath.Base(path)).WithError(err).Error("inbox dub failed")
				}
			},
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// dubCmd is the one-shot path: dub a file, export the untouched timeline,
// and pull the result down, without starting the daemon.
func dubCmd() *cobra.Command {
	var transcriptBase string
	cmd := &cobra.Command{
		Use:   "dub <audio-file>",
		Short: "Dub one file and download the export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			godotenv.Load()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			sess, err := setupSession(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			res, err := sess.StartDub(ctx, args[0])
			if err != nil {
				return err
			}
			log.WithField("sentences", len(res.Sentences)).Info("dubbed")

			if _, err := sess.Export(ctx); err != nil {
				return err
			}
			path, err := sess.DownloadExport(ctx)
			if err != nil {
				return err
			}
			fmt.Println(path)

			if transcriptBase != "" {
				if err := sess.WriteTranscript(transcriptBase, []string{"srt", "txt"}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&transcriptBase, "transcript", "", "also write <base>.srt and <base>.txt")
	return cmd
}
