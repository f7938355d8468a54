package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/sonroyaalmerol/feedplay/internal/cache"
	"github.com/sonroyaalmerol/feedplay/internal/config"
	"github.com/sonroyaalmerol/feedplay/internal/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func strPtr(s string) *string { return &s }

func TestIsDirectMedia(t *testing.T) {
	Convey("IsDirectMedia", t, func() {
		So(IsDirectMedia("/videos/clip.mp4"), ShouldBeTrue)
		So(IsDirectMedia("clip.webm"), ShouldBeTrue)
		So(IsDirectMedia("rtmp://live.example/stream"), ShouldBeTrue)
		So(IsDirectMedia("https://cdn.example/v/clip.MP4?sig=1"), ShouldBeTrue)
		So(IsDirectMedia("https://cdn.example/live/index.m3u8"), ShouldBeTrue)
		So(IsDirectMedia("https://www.youtube.com/watch?v=abc"), ShouldBeFalse)
		So(IsDirectMedia("https://example.com/posts/42"), ShouldBeFalse)
	})
}

func TestPlayableURL(t *testing.T) {
	Convey("PlayableURL prefers requested formats, then url, then formats", t, func() {
		So(PlayableURL(nil), ShouldEqual, "")

		info := &ytdlp.ExtractedInfo{
			URL:     strPtr("https://cdn/top.mp4"),
			Formats: []*ytdlp.ExtractedFormat{{URL: "https://cdn/f0.mp4"}},
			RequestedFormats: []*ytdlp.ExtractedFormat{
				nil,
				{URL: "https://cdn/video.mp4"},
				{URL: "https://cdn/audio.m4a"},
			},
		}
		So(PlayableURL(info), ShouldEqual, "https://cdn/video.mp4")

		info.RequestedFormats = nil
		So(PlayableURL(info), ShouldEqual, "https://cdn/top.mp4")

		info.URL = nil
		So(PlayableURL(info), ShouldEqual, "https://cdn/f0.mp4")

		info.Formats = []*ytdlp.ExtractedFormat{{URL: "file:///tmp/x"}}
		So(PlayableURL(info), ShouldEqual, "")
	})
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	Convey("Given a resolver with a url cache", t, func() {
		cfg := &config.Config{DataDir: t.TempDir(), ResolveEnabled: true, ResolveTTL: time.Hour}
		db, err := repository.OpenDB(cfg)
		So(err, ShouldBeNil)
		defer db.Close()

		r := NewResolver(cfg, cache.NewURLCache(cfg, repository.NewRepo(db)))
		calls := 0
		r.run = func(_ context.Context, source string) (*ytdlp.ExtractedInfo, error) {
			calls++
			if source == "https://example.com/broken" {
				return nil, errors.New("yt-dlp run: exit status 1")
			}
			if source == "https://example.com/empty" {
				return &ytdlp.ExtractedInfo{}, nil
			}
			return &ytdlp.ExtractedInfo{URL: strPtr("https://cdn.example/" + source[len(source)-3:] + ".mp4")}, nil
		}

		Convey("Direct media is passed through untouched", func() {
			u, err := r.Resolve(ctx, "https://cdn.example/a.mp4")
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "https://cdn.example/a.mp4")
			So(calls, ShouldEqual, 0)
		})

		Convey("A page url is resolved once and then served from the cache", func() {
			u, err := r.Resolve(ctx, "https://youtu.be/abc")
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "https://cdn.example/abc.mp4")

			u, err = r.Resolve(ctx, "https://youtu.be/abc")
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "https://cdn.example/abc.mp4")
			So(calls, ShouldEqual, 1)
		})

		Convey("Extractor failures are returned", func() {
			_, err := r.Resolve(ctx, "https://example.com/broken")
			So(err, ShouldNotBeNil)
		})

		Convey("A page without a playable url is an error", func() {
			_, err := r.Resolve(ctx, "https://example.com/empty")
			So(errors.Is(err, ErrNoPlayableURL), ShouldBeTrue)
		})

		Convey("With resolving disabled every source passes through", func() {
			r.enabled = false
			u, err := r.Resolve(ctx, "https://youtu.be/abc")
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "https://youtu.be/abc")
			So(calls, ShouldEqual, 0)
		})
	})
}
