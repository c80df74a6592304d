package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/metrics"
)

// imgur отдаёт редирект на эту картинку вместо удалённого контента.
const imgurRemovedURL = "https://i.imgur.com/removed.png"

// Config — настройки сборщика медиа.
type Config struct {
	TempDir         string
	RetryMax        int
	RetryBackoff    time.Duration
	MaxGifSizeMB    float64
	FFmpegTimeout   time.Duration
	DownloadTimeout time.Duration
}

// Assembler материализует медиа кандидата: скачивает картинку или потоки
// видео, извлекает первый кадр, а склейку и транскод откладывает до
// Finalize. Все временные файлы живут в TempDir и удаляются в Cleanup.
type Assembler struct {
	log    zerolog.Logger
	cfg    Config
	client *http.Client
	run    CommandRunner
	seq    atomic.Int64
}

var _ domain.Assembler = (*Assembler)(nil)

// NewAssembler создаёт сборщик и временную папку под него.
func NewAssembler(cfg Config, logger zerolog.Logger) (*Assembler, error) {
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "tg-memes-bot")
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("создание временной папки: %w", err)
	}
	if cfg.FFmpegTimeout <= 0 {
		cfg.FFmpegTimeout = 2 * time.Minute
	}
	return &Assembler{
		log:    logger,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.DownloadTimeout},
		run:    defaultCommandRunner,
	}, nil
}

// WithCommandRunner подменяет запуск внешних команд. Используется в тестах.
func (a *Assembler) WithCommandRunner(r CommandRunner) {
	if r != nil {
		a.run = r
	}
}

// Prepare скачивает медиа кандидата и извлекает репрезентативный кадр.
func (a *Assembler) Prepare(ctx context.Context, cand domain.Candidate) (domain.PreparedMedia, error) {
	p := &prepared{a: a, cand: cand}

	var err error
	switch cand.Kind {
	case domain.MediaImage:
		err = a.prepareImage(ctx, cand, p)
	case domain.MediaVideo:
		err = a.prepareVideo(ctx, cand, p)
	default:
		err = domain.NewAssemblyError("classify", fmt.Errorf("неизвестный тип медиа %q", cand.Kind))
	}
	if err != nil {
		p.Cleanup()
		return nil, err
	}
	return p, nil
}

// CleanTempDir удаляет все файлы из временной папки. Вызывается при старте
// воркера и при ежедневной очистке: после сбоев там могут застрять файлы.
func (a *Assembler) CleanTempDir() {
	entries, err := os.ReadDir(a.cfg.TempDir)
	if err != nil {
		a.log.Warn().Err(err).Msg("media: не удалось прочитать временную папку")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(a.cfg.TempDir, entry.Name())
		if err := os.Remove(path); err != nil {
			a.log.Warn().Err(err).Str("path", path).Msg("media: не удалось удалить файл")
		}
	}
}

func (a *Assembler) prepareImage(ctx context.Context, cand domain.Candidate, p *prepared) error {
	path := a.filename("png", "")
	p.track(path)
	if err := a.download(ctx, cand.URL, path); err != nil {
		return domain.NewAssemblyError("download", err)
	}
	if err := reencodePNG(path); err != nil {
		return domain.NewAssemblyError("convert", err)
	}
	p.assetPath = path
	p.framePath = path
	return nil
}

func (a *Assembler) prepareVideo(ctx context.Context, cand domain.Candidate, p *prepared) error {
	lower := strings.ToLower(cand.URL)
	switch {
	case strings.HasSuffix(lower, ".gifv"):
		// gifv — это mp4 за другим расширением.
		direct := cand.URL[:len(cand.URL)-len(".gifv")] + ".mp4"
		return a.prepareDirectVideo(ctx, direct, p)

	case strings.HasSuffix(lower, ".gif"):
		if err := a.checkGifSize(ctx, cand.URL); err != nil {
			return err
		}
		gifPath := a.filename("gif", "")
		p.track(gifPath)
		if err := a.download(ctx, cand.URL, gifPath); err != nil {
			return domain.NewAssemblyError("download", err)
		}
		p.gifPath = gifPath
		return a.extractFirstFrame(ctx, gifPath, p)

	case strings.Contains(lower, "v.redd.it"):
		return a.prepareDASH(ctx, cand.URL, p)

	default:
		return a.prepareDirectVideo(ctx, cand.URL, p)
	}
}

func (a *Assembler) prepareDirectVideo(ctx context.Context, url string, p *prepared) error {
	path := a.filename("mp4", "")
	p.track(path)
	if err := a.download(ctx, url, path); err != nil {
		return domain.NewAssemblyError("download", err)
	}
	p.videoPart = path
	return a.extractFirstFrame(ctx, path, p)
}

func (a *Assembler) prepareDASH(ctx context.Context, url string, p *prepared) error {
	base := strings.TrimRight(url, "/")
	payload, err := a.fetchBytes(ctx, base+"/DASHPlaylist.mpd")
	if err != nil {
		return domain.NewAssemblyError("manifest", err)
	}
	videoURL, audioURL, err := parseManifest(base, payload)
	if err != nil {
		return domain.NewAssemblyError("manifest", err)
	}

	videoPart := a.filename("mp4", "-video")
	p.track(videoPart)
	if err := a.download(ctx, videoURL, videoPart); err != nil {
		return domain.NewAssemblyError("download", err)
	}
	p.videoPart = videoPart

	if audioURL != "" {
		audioPart := a.filename("mp4", "-audio")
		p.track(audioPart)
		if err := a.download(ctx, audioURL, audioPart); err != nil {
			return domain.NewAssemblyError("download", err)
		}
		p.audioPart = audioPart
	}

	return a.extractFirstFrame(ctx, videoPart, p)
}

// extractFirstFrame достаёт первый декодируемый кадр до дорогой склейки:
// так кандидата можно отклонить по кадру, не заплатив за merge.
func (a *Assembler) extractFirstFrame(ctx context.Context, src string, p *prepared) error {
	out := a.filename("png", "-preview")
	p.track(out)
	if err := a.ffmpeg(ctx, "-y", "-i", src, "-vframes", "1", out); err != nil {
		return domain.NewAssemblyError("frame", err)
	}
	p.framePath = out
	return nil
}

func (a *Assembler) checkGifSize(ctx context.Context, url string) error {
	sizeMB, err := a.contentLengthMB(ctx, url)
	if err != nil {
		return domain.NewAssemblyError("size_check", err)
	}
	if a.cfg.MaxGifSizeMB > 0 && sizeMB > a.cfg.MaxGifSizeMB {
		return domain.NewAssemblyError("size_check", fmt.Errorf("gif слишком большой: %.1f MB", sizeMB))
	}
	return nil
}

func (a *Assembler) contentLengthMB(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := a.client.Do(req)
	metrics.ObserveNetworkRequest("media", "size_probe", req.URL.Host, start, err)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw := resp.Header.Get("Content-Length")
	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("не удалось определить размер файла")
	}
	return float64(size) / (1024 * 1024), nil
}

// download скачивает url в path с ограниченным числом повторов.
func (a *Assembler) download(ctx context.Context, url, path string) error {
	op := func() error {
		return a.downloadOnce(ctx, url, path)
	}
	return backoff.Retry(op, a.retryPolicy(ctx))
}

func (a *Assembler) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	var payload []byte
	op := func() error {
		var err error
		payload, err = a.fetchOnce(ctx, url)
		return err
	}
	if err := backoff.Retry(op, a.retryPolicy(ctx)); err != nil {
		return nil, err
	}
	return payload, nil
}

func (a *Assembler) retryPolicy(ctx context.Context) backoff.BackOffContext {
	interval := a.cfg.RetryBackoff
	if interval <= 0 {
		interval = time.Second
	}
	retries := a.cfg.RetryMax
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(retries)), ctx)
}

func (a *Assembler) downloadOnce(ctx context.Context, url, path string) error {
	body, err := a.get(ctx, url, "download")
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return backoff.Permanent(err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (a *Assembler) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	body, err := a.get(ctx, url, "fetch")
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (a *Assembler) get(ctx context.Context, url, operation string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	start := time.Now()
	resp, err := a.client.Do(req)
	metrics.ObserveNetworkRequest("media", operation, req.URL.Host, start, err)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		err := fmt.Errorf("статус %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	if resp.Request.URL.String() == imgurRemovedURL {
		_ = resp.Body.Close()
		return nil, backoff.Permanent(errors.New("контент удалён"))
	}
	return resp.Body, nil
}

func (a *Assembler) ffmpeg(ctx context.Context, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, a.cfg.FFmpegTimeout)
	defer cancel()
	start := time.Now()
	err := a.run(runCtx, "ffmpeg", args...)
	metrics.ObserveNetworkRequest("ffmpeg", "run", "local", start, err)
	return err
}

func (a *Assembler) filename(ext, suffix string) string {
	name := fmt.Sprintf("%d-%04d%s.%s", time.Now().UnixMicro(), a.seq.Add(1), suffix, ext)
	return filepath.Join(a.cfg.TempDir, name)
}

// reencodePNG перекодирует скачанную картинку в png, заодно проверяя, что
// это вообще декодируемое изображение.
func reencodePNG(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("декодирование картинки: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		return fmt.Errorf("кодирование png: %w", err)
	}
	return out.Close()
}

// prepared хранит скачанные части медиа до стадии склейки.
type prepared struct {
	a    *Assembler
	cand domain.Candidate

	framePath string
	assetPath string
	videoPart string
	audioPart string
	gifPath   string

	files   []string
	cleaned bool
}

var _ domain.PreparedMedia = (*prepared)(nil)

// FramePath возвращает путь к репрезентативному кадру.
func (p *prepared) FramePath() string { return p.framePath }

// Finalize завершает сборку: склеивает потоки или транскодирует gif в mp4.
// Для картинок и прямых mp4 просто возвращает готовый файл.
func (p *prepared) Finalize(ctx context.Context) (domain.MediaAsset, error) {
	switch {
	case p.cand.Kind == domain.MediaImage:
		return domain.MediaAsset{Path: p.assetPath, FramePath: p.framePath, Kind: domain.MediaImage}, nil

	case p.gifPath != "":
		out := p.a.filename("mp4", "")
		p.track(out)
		err := p.a.ffmpeg(ctx,
			"-y", "-i", p.gifPath,
			"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
			"-movflags", "faststart",
			"-pix_fmt", "yuv420p",
			out,
		)
		if err != nil {
			return domain.MediaAsset{}, domain.NewAssemblyError("transcode", err)
		}
		return domain.MediaAsset{Path: out, FramePath: p.framePath, Kind: domain.MediaVideo}, nil

	case p.audioPart != "":
		out := p.a.filename("mp4", "")
		p.track(out)
		err := p.a.ffmpeg(ctx,
			"-y", "-i", p.videoPart, "-i", p.audioPart,
			"-c", "copy",
			"-movflags", "faststart",
			out,
		)
		if err != nil {
			return domain.MediaAsset{}, domain.NewAssemblyError("merge", err)
		}
		return domain.MediaAsset{Path: out, FramePath: p.framePath, Kind: domain.MediaVideo}, nil

	default:
		return domain.MediaAsset{Path: p.videoPart, FramePath: p.framePath, Kind: domain.MediaVideo}, nil
	}
}

// Cleanup удаляет все временные файлы прогона. Идемпотентен, вызывается на
// любом пути выхода.
func (p *prepared) Cleanup() {
	if p.cleaned {
		return
	}
	p.cleaned = true
	for _, path := range p.files {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.a.log.Warn().Err(err).Str("path", path).Msg("media: не удалось удалить временный файл")
		}
	}
}

func (p *prepared) track(paths ...string) {
	p.files = append(p.files, paths...)
}
