package model

import "time"

// CollectionWindow 采集日期区间（闭区间，按自然日）
type CollectionWindow struct {
	Start time.Time
	End   time.Time
}

// Day 截断为所在时区的自然日零点
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NewWindow 以end为最后一天，向前取days天
func NewWindow(end time.Time, days int) CollectionWindow {
	if days < 1 {
		days = 1
	}
	end = Day(end)
	return CollectionWindow{
		Start: end.AddDate(0, 0, -(days - 1)),
		End:   end,
	}
}

// SingleDay 只包含一天的区间
func SingleDay(day time.Time) CollectionWindow {
	return NewWindow(day, 1)
}

// Days 返回区间内的每一天
func (w CollectionWindow) Days() []time.Time {
	start, end := Day(w.Start), Day(w.End)
	if end.Before(start) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Contains 判断某天是否在区间内
func (w CollectionWindow) Contains(t time.Time) bool {
	d := Day(t.In(w.Start.Location()))
	return !d.Before(Day(w.Start)) && !d.After(Day(w.End))
}

func (w CollectionWindow) String() string {
	return w.Start.Format("2006-01-02") + "~" + w.End.Format("2006-01-02")
}
