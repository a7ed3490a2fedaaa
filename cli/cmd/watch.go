package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ardnew/shgo/log"
	"github.com/ardnew/shgo/lower"
	"github.com/ardnew/shgo/shell"
)

// Watch converts a script and converts it again whenever the script or a
// file it sources changes.
type Watch struct {
	Pipeline `embed:""`

	Output   string        `help:"Directory the package is written to (default: build/NAME)." placeholder:"DIR" short:"o" type:"path"`
	Debounce time.Duration `default:"250ms"                                                        help:"Quiet period before converting again."`

	Script string `arg:"" help:"Shell script to watch." name:"script" type:"path"`
}

// Run executes the watch command until ctx is done.
func (w *Watch) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ErrWatch.Wrap(err)
	}
	defer watcher.Close()

	files := w.build(ctx)
	dirs := w.watch(ctx, watcher, files, nil)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !files[filepath.Clean(ev.Name)] {
				continue
			}

			log.TraceContext(ctx, "change",
				slog.String("file", ev.Name),
				slog.String("op", ev.Op.String()))

			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}

			timerC = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			log.WarnContext(ctx, "watch", slog.Any("error", err))

		case <-timerC:
			timerC = nil
			files = w.build(ctx)
			dirs = w.watch(ctx, watcher, files, dirs)
		}
	}
}

// build converts the script and returns the files the conversion read.
// Failures are reported and leave the previous output in place.
func (w *Watch) build(ctx context.Context) map[string]bool {
	files := map[string]bool{}
	if abs, err := filepath.Abs(w.Script); err == nil {
		files[abs] = true
	}

	res, prog, _, err := w.generate(ctx, w.Script)
	if res != nil {
		for _, p := range res.Order {
			files[p] = true
		}
	}

	if err == nil {
		err = w.emit(ctx, prog)
	}

	if err != nil {
		log.ErrorContext(ctx, "convert failed", slog.Any("error", err))

		return files
	}

	log.InfoContext(ctx, "converted",
		slog.String("script", w.Script),
		slog.Int("watching", len(files)))

	return files
}

// emit replaces the previous output with prog.
func (w *Watch) emit(ctx context.Context, prog *shell.Program) error {
	files, err := lower.Emit(prog)
	if err != nil {
		return err
	}

	return writeFiles(fsFrom(ctx), outputDir(w.Output, w.Script), files, true)
}

// watch watches the directories holding files, so that files replaced by
// rename are seen, and stops watching directories no longer needed.
func (w *Watch) watch(ctx context.Context, watcher *fsnotify.Watcher, files map[string]bool, old map[string]bool) map[string]bool {
	dirs := make(map[string]bool, len(files))

	for f := range files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}

		dirs[dir] = true

		if old[dir] {
			continue
		}

		if err := watcher.Add(dir); err != nil {
			log.WarnContext(ctx, "watch", slog.String("dir", dir), slog.Any("error", err))
		}
	}

	for dir := range old {
		if !dirs[dir] {
			_ = watcher.Remove(dir)
		}
	}

	return dirs
}
