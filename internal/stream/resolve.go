package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/sonroyaalmerol/feedplay/internal/cache"
	"github.com/sonroyaalmerol/feedplay/internal/config"
	"github.com/sonroyaalmerol/feedplay/internal/utils"
)

var installOnce sync.Once

var ErrNoPlayableURL = errors.New("no playable url")

var directExts = map[string]struct{}{
	".mp4": {}, ".m4v": {}, ".mov": {}, ".mkv": {}, ".webm": {},
	".avi": {}, ".ts": {}, ".m3u8": {}, ".mpd": {}, ".flv": {}, ".gif": {},
}

// IsDirectMedia reports whether source can be handed to the decoder as is:
// local paths, non-http schemes and http links to media files.
func IsDirectMedia(source string) bool {
	if !utils.IsNetworkURL(source) {
		return true
	}
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	_, ok := directExts[strings.ToLower(path.Ext(u.Path))]
	return ok
}

// Resolver expands page URLs (video sites, shorts, posts) into a direct
// media URL through yt-dlp, remembering the result in the url cache.
type Resolver struct {
	enabled bool
	format  string
	cache   *cache.URLCache
	run     func(ctx context.Context, source string) (*ytdlp.ExtractedInfo, error)
}

func NewResolver(cfg *config.Config, c *cache.URLCache) *Resolver {
	r := &Resolver{enabled: cfg.ResolveEnabled, format: cfg.YtdlpFormat, cache: c}
	r.run = r.extract
	return r
}

func (r *Resolver) Resolve(ctx context.Context, source string) (string, error) {
	if !r.enabled || IsDirectMedia(source) {
		return source, nil
	}

	if r.cache != nil {
		if u, ok := r.cache.Get(ctx, source); ok {
			slog.Debug("resolved url cache hit", "source", source)
			return u, nil
		}
	}

	info, err := r.run(ctx, source)
	if err != nil {
		return "", err
	}
	u := PlayableURL(info)
	if u == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPlayableURL, source)
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, source, u); err != nil {
			slog.Warn("failed to cache resolved url", "source", source, "err", err)
		}
	}
	return u, nil
}

func (r *Resolver) extract(ctx context.Context, source string) (*ytdlp.ExtractedInfo, error) {
	installOnce.Do(func() {
		ytdlp.MustInstall(context.Background(), nil)
	})

	res, err := ytdlp.New().
		Format(r.format).
		NoPlaylist().
		NoCheckCertificates().
		DumpJSON().
		Run(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}

	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, errors.New("parse yt-dlp json: no info returned")
	}
	info := infos[0]
	// a playlist-like page plays its first entry
	for _, e := range info.Entries {
		if e != nil {
			return e, nil
		}
	}
	return info, nil
}

// PlayableURL picks the first http url from requested formats, the top
// level url, then the format list.
func PlayableURL(info *ytdlp.ExtractedInfo) string {
	if info == nil {
		return ""
	}
	for _, rf := range info.RequestedFormats {
		if rf != nil && utils.IsNetworkURL(rf.URL) {
			return rf.URL
		}
	}
	if info.URL != nil && utils.IsNetworkURL(*info.URL) {
		return *info.URL
	}
	for _, f := range info.Formats {
		if f != nil && utils.IsNetworkURL(f.URL) {
			return f.URL
		}
	}
	return ""
}
