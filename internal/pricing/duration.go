package pricing

import (
	"strconv"
	"strings"
	"time"

	"github.com/langchou/rentdesk/internal/models"
)

const (
	hoursPerDay  = 24
	hoursPerWeek = 7 * hoursPerDay
)

// Duration 租期拆分：周 / 天 / 小时
// 有周时 Days 在 0-6 之间，Hours 始终在 0-23 之间
type Duration struct {
	Weeks int `json:"weeks"`
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// ComputeDuration 计算两个时间点之间的租期
// 取绝对差值，还车早于取车与正常顺序结果相同；不足一小时的部分舍去
// 零头小时单独按时计费，不向上取整为整天
func ComputeDuration(start, end time.Time) Duration {
	if end.Before(start) {
		start, end = end, start
	}

	// time.Duration 只能表示约 292 年，按秒计算
	secs := end.Unix() - start.Unix()
	if end.Nanosecond() < start.Nanosecond() {
		secs--
	}

	totalHours := int(secs / 3600)
	return Duration{
		Weeks: totalHours / hoursPerWeek,
		Days:  (totalHours % hoursPerWeek) / hoursPerDay,
		Hours: totalHours % hoursPerDay,
	}
}

// DurationOf 两端都设置后才计算，否则返回未设置
func DurationOf(r models.TimeRange) (Duration, bool) {
	if !r.Complete() {
		return Duration{}, false
	}
	return ComputeDuration(*r.Pickup, *r.Return), true
}

// IsZero 是否为零租期
func (d Duration) IsZero() bool {
	return d.Weeks == 0 && d.Days == 0 && d.Hours == 0
}

// TotalHours 折算总小时数
func (d Duration) TotalHours() int {
	return d.Weeks*hoursPerWeek + d.Days*hoursPerDay + d.Hours
}

// String 表单只读字段的显示文本，如 "1 Week 1 Day"
func (d Duration) String() string {
	parts := make([]string, 0, 3)
	parts = appendUnit(parts, d.Weeks, "Week")
	parts = appendUnit(parts, d.Days, "Day")
	parts = appendUnit(parts, d.Hours, "Hour")
	return strings.Join(parts, " ")
}

func appendUnit(parts []string, n int, unit string) []string {
	if n == 0 {
		return parts
	}
	if n > 1 {
		unit += "s"
	}
	return append(parts, strconv.Itoa(n)+" "+unit)
}
