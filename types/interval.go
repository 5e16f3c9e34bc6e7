package types

import (
	"fmt"
	"math"
	"time"
)

type Interval string

const (
	OneMinute      Interval = "1"
	ThreeMinutes   Interval = "3"
	FiveMinutes    Interval = "5"
	FifteenMinutes Interval = "15"
	ThirtyMinutes  Interval = "30"
	Hour           Interval = "60"
	TwoHours       Interval = "120"
	FourHours      Interval = "240"
	Day            Interval = "D"
	Week           Interval = "W"
	Month          Interval = "M"
)

var IntervalToTime = map[Interval]time.Duration{
	OneMinute:      time.Minute,
	ThreeMinutes:   time.Minute * 3,
	FiveMinutes:    time.Minute * 5,
	FifteenMinutes: time.Minute * 15,
	ThirtyMinutes:  time.Minute * 30,
	Hour:           time.Hour,
	TwoHours:       time.Hour * 2,
	FourHours:      time.Hour * 4,
	Day:            time.Hour * 24,
	Week:           time.Hour * 24 * 7,
}

// periodsPerYear is used to annualize per-bar statistics.
var periodsPerYear = map[Interval]float64{
	Day:   252,
	Week:  52,
	Month: 12,
}

var ConvertInterval = map[string]Interval{
	"1":   OneMinute,
	"3":   ThreeMinutes,
	"5":   FiveMinutes,
	"15":  FifteenMinutes,
	"30":  ThirtyMinutes,
	"60":  Hour,
	"120": TwoHours,
	"240": FourHours,
	"D":   Day,
	"W":   Week,
	"M":   Month,
}

// ParseInterval converts the textual form used in config files.
func ParseInterval(s string) (Interval, error) {
	i, ok := ConvertInterval[s]
	if !ok {
		return "", fmt.Errorf("unknown interval %q", s)
	}
	return i, nil
}

// Duration returns the bar length, or zero for calendar intervals (month)
// and unset intervals.
func (i Interval) Duration() time.Duration {
	return IntervalToTime[i]
}

// PeriodsPerYear returns how many bars of this interval make a trading year.
// Intraday intervals assume a 6.5 hour session.
func (i Interval) PeriodsPerYear() float64 {
	if p, ok := periodsPerYear[i]; ok {
		return p
	}
	d := i.Duration()
	if d <= 0 {
		return periodsPerYear[Day]
	}
	session := 6.5 * float64(time.Hour)
	return math.Max(1, session/float64(d)) * periodsPerYear[Day]
}
