package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	reMonthDay     = regexp.MustCompile(`^\d{2}-\d{2}$`)
	reMonthDayTime = regexp.MustCompile(`^\d{2}-\d{2}\s+\d{2}:\d{2}$`)
	reFullDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reFullDateTime = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}$`)
	reDigits       = regexp.MustCompile(`\d+`)
)

// ParseTimeText 解析消息页常见的时间文本。
// 支持 MM-DD、MM-DD HH:MM（年份取当前年）、YYYY-MM-DD、YYYY-MM-DD HH:MM，
// 以及 "N小时前" 这类粗粒度相对时间（只还原到当前小时整点）。
// 无法识别时返回 ok=false，不返回错误。
func ParseTimeText(text string, now time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	loc := now.Location()
	normalized := strings.Join(strings.Fields(text), " ")

	switch {
	case reMonthDay.MatchString(text):
		t, err := time.ParseInLocation("2006-01-02", fmt.Sprintf("%d-%s", now.Year(), normalized), loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case reMonthDayTime.MatchString(text):
		t, err := time.ParseInLocation("2006-01-02 15:04", fmt.Sprintf("%d-%s", now.Year(), normalized), loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case reFullDate.MatchString(text):
		t, err := time.ParseInLocation("2006-01-02", normalized, loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case reFullDateTime.MatchString(text):
		t, err := time.ParseInLocation("2006-01-02 15:04", normalized, loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	if strings.HasSuffix(text, "小时前") && reDigits.MatchString(text) {
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, loc), true
	}

	return time.Time{}, false
}
