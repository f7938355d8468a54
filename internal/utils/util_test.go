package utils

import (
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPrettyTime(t *testing.T) {
	Convey("PrettyTime", t, func() {
		So(PrettyTime(0), ShouldEqual, "0:00")
		So(PrettyTime(65), ShouldEqual, "1:05")
		So(PrettyTime(3725), ShouldEqual, "1:02:05")
		So(PrettyDuration(90*time.Second+400*time.Millisecond), ShouldEqual, "1:30")
		So(PrettyDuration(-time.Second), ShouldEqual, "0:00")
	})
}

func TestNetworking(t *testing.T) {
	Convey("IsNetworkURL", t, func() {
		So(IsNetworkURL("https://cdn.example/v.mp4"), ShouldBeTrue)
		So(IsNetworkURL("http://cdn.example/v.mp4"), ShouldBeTrue)
		So(IsNetworkURL("/videos/v.mp4"), ShouldBeFalse)
		So(IsNetworkURL("file:///videos/v.mp4"), ShouldBeFalse)
	})

	Convey("FFmpegHeaders", t, func() {
		h := FFmpegHeaders()
		lines := strings.Split(strings.TrimSuffix(h, "\r\n"), "\r\n")
		So(lines, ShouldHaveLength, 4)
		So(lines[0], ShouldEqual, "Accept: */*")
		So(lines[1], ShouldEqual, "Accept-Language: en-US,en;q=0.9")
		So(lines[2], ShouldEqual, "Connection: keep-alive")
		So(lines[3], ShouldStartWith, "User-Agent: Mozilla/5.0 ")
		So(h, ShouldEndWith, "\r\n")
		So(strings.HasSuffix(h, "\r\n\r\n"), ShouldBeFalse)
	})
}
