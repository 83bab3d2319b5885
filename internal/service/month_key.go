package service

import (
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
)

// monthKeyOf 返回时间所在结算月份的键值。
func monthKeyOf(t time.Time) string {
	return t.Format(constants.MonthKeyLayout)
}

// previousMonthKey 返回时间所在月份的上一个结算月份键值。
func previousMonthKey(t time.Time) string {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return monthKeyOf(firstOfMonth.AddDate(0, 0, -1))
}

// PreviousMonthKey 返回时间所在月份的上一个结算月份键值，供巡检任务定位待关账月份。
func PreviousMonthKey(t time.Time) string {
	return previousMonthKey(t)
}

// parseMonthKey 解析结算月份键值，格式为 YYYY-MM。
func parseMonthKey(raw string) (time.Time, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return time.Time{}, ErrMonthKeyInvalid
	}
	t, err := time.Parse(constants.MonthKeyLayout, key)
	if err != nil {
		return time.Time{}, ErrMonthKeyInvalid
	}
	return t, nil
}

// normalizeMonthKey 清洗并校验结算月份键值。
func normalizeMonthKey(raw string) (string, error) {
	t, err := parseMonthKey(raw)
	if err != nil {
		return "", err
	}
	return monthKeyOf(t), nil
}
