package queue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// everyPattern は "every 24 hours" 形式の繰り返し指定にマッチする。
var everyPattern = regexp.MustCompile(`^every\s+(\d+)\s+(second|minute|hour|day|week)s?$`)

var everyUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// maxEveryInterval は "every" 形式で指定できる間隔の上限（1年）。
const maxEveryInterval = 365 * 24 * time.Hour

// ParseSchedule は繰り返しスケジュール式を解釈する。
// "every <n> <unit>" 形式（unit: second/minute/hour/day/week）と
// 5フィールドの標準cron式（"0 */6 * * *" など）を受け付ける。
func ParseSchedule(expr string) (cron.Schedule, error) {
	normalized := strings.ToLower(strings.TrimSpace(expr))
	if normalized == "" {
		return nil, fmt.Errorf("スケジュール式が空です")
	}

	if m := everyPattern.FindStringSubmatch(normalized); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("スケジュール式 %q の間隔が不正です", expr)
		}
		unit := everyUnits[m[2]]
		if int64(n) > int64(maxEveryInterval/unit) {
			return nil, fmt.Errorf("スケジュール式 %q の間隔が上限（%s）を超えています", expr, maxEveryInterval)
		}
		return cron.Every(time.Duration(n) * unit), nil
	}

	sched, err := cron.ParseStandard(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("スケジュール式 %q を解釈できません: %w", expr, err)
	}
	return sched, nil
}
