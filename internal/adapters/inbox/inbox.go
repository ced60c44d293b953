// Package inbox はディレクトリに置かれたファイルを取り込みパイプラインへ流します。
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ogurasousui/codex-contact-directory/internal/core/employee"
	"github.com/ogurasousui/codex-contact-directory/internal/core/ingest"
)

const (
	processedDir    = "processed"
	failedDir       = "failed"
	errorSuffix     = ".error.txt"
	defaultDebounce = 500 * time.Millisecond
	defaultSchedule = "@every 5m"
)

var contentTypes = map[string]string{
	".csv":  "text/csv",
	".json": "application/json",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Options は Watcher の設定です。
type Options struct {
	Dir           string
	SweepSchedule string
	Debounce      time.Duration
	Logger        *slog.Logger
}

// Watcher は inbox ディレクトリを監視し、定期スイープと合わせてファイルを取り込みます。
type Watcher struct {
	dir      string
	schedule string
	debounce time.Duration
	ingester ingest.Ingester
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New は Watcher を生成し、processed / failed ディレクトリを用意します。
func New(ingester ingest.Ingester, opts Options) (*Watcher, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, errors.New("inbox: dir must be set")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: resolve %s: %w", dir, err)
	}
	for _, sub := range []string{"", processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(abs, sub), 0o755); err != nil {
			return nil, fmt.Errorf("inbox: create %s: %w", filepath.Join(abs, sub), err)
		}
	}

	w := &Watcher{
		dir:      abs,
		schedule: opts.SweepSchedule,
		debounce: opts.Debounce,
		ingester: ingester,
		logger:   opts.Logger,
		inFlight: make(map[string]struct{}),
	}
	if w.schedule == "" {
		w.schedule = defaultSchedule
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w, nil
}

// Run は監視と定期スイープを開始し、ctx がキャンセルされるまでブロックします。
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(w.schedule, func() { w.Sweep(ctx) }); err != nil {
		return fmt.Errorf("inbox: invalid sweep schedule %q: %w", w.schedule, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	w.logger.Info("inbox watching", "dir", w.dir, "sweep_schedule", w.schedule)
	w.Sweep(ctx)

	var (
		timersMu sync.Mutex
		timers   = make(map[string]*time.Timer)
	)
	defer func() {
		timersMu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		timersMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Dir(event.Name) != w.dir || !supported(event.Name) {
				continue
			}

			path := event.Name
			timersMu.Lock()
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				timersMu.Lock()
				delete(timers, path)
				timersMu.Unlock()
				w.process(ctx, path)
			})
			timersMu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

// Sweep は inbox 直下の未処理ファイルをすべて取り込み、処理したファイル数を返します。
func (w *Watcher) Sweep(ctx context.Context) int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("inbox sweep failed", "dir", w.dir, "error", err)
		return 0
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	processed := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if w.process(ctx, filepath.Join(w.dir, name)) {
			processed++
		}
	}
	return processed
}

// process は 1 ファイルを取り込み、結果に応じて processed / failed へ移動します。
// 再試行可能な失敗の場合はファイルをそのまま残します。
func (w *Watcher) process(ctx context.Context, path string) bool {
	if !w.claim(path) {
		return false
	}
	defer w.release(path)

	content, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Error("inbox read failed", "file", path, "error", err)
		}
		return false
	}

	name := filepath.Base(path)
	result, err := w.ingester.Ingest(ctx, ingest.Upload{
		Content:     content,
		ContentType: contentTypes[strings.ToLower(filepath.Ext(name))],
		Filename:    name,
	})
	switch {
	case err == nil:
		dst := filepath.Join(w.dir, processedDir, result.BatchID.String()+"_"+name)
		if err := os.Rename(path, dst); err != nil {
			w.logger.Error("inbox move failed", "file", path, "error", err)
		}
		w.logger.Info("inbox file ingested", "file", name, "batch_id", result.BatchID, "count", result.Count)
		return true
	case retryable(err):
		w.logger.Warn("inbox file deferred", "file", name, "error", err)
		return false
	default:
		w.fail(path, err)
		return true
	}
}

func (w *Watcher) fail(path string, cause error) {
	name := uuid.NewString() + "_" + filepath.Base(path)
	dst := filepath.Join(w.dir, failedDir, name)

	w.logger.Warn("inbox file rejected", "file", filepath.Base(path), "error", cause)
	if err := os.Rename(path, dst); err != nil {
		w.logger.Error("inbox move failed", "file", path, "error", err)
		return
	}
	if err := os.WriteFile(dst+errorSuffix, []byte(cause.Error()+"\n"), 0o644); err != nil {
		w.logger.Error("inbox error sidecar failed", "file", dst, "error", err)
	}
}

func (w *Watcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[path]; busy {
		return false
	}
	w.inFlight[path] = struct{}{}
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.inFlight, path)
	w.mu.Unlock()
}

func supported(name string) bool {
	_, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// retryable はファイル内容に起因しない失敗かどうかを返します。重複メールは内容起因として扱います。
func retryable(err error) bool {
	if errors.Is(err, ingest.ErrTooManyIngestions) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var persistence *ingest.PersistenceError
	return errors.As(err, &persistence) && !errors.Is(err, employee.ErrEmailAlreadyExists)
}
