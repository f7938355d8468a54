package utils

import (
	"fmt"
	"time"
)

func PrettyTime(sec int) string {
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func PrettyDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return PrettyTime(int(d / time.Second))
}
