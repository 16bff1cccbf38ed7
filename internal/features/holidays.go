package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// Holiday kinds
const (
	KindNational = "national"
	KindSchool   = "school"
)

// Aggregate holiday feature names
const (
	FeatureNationalHoliday = "is_national_holiday"
	FeatureSchoolHoliday   = "is_schoolholiday"
	FeatureBridgeDay       = "is_bridgeday"
)

// Holiday 휴일 기준 데이터 한 행 (날짜, 이름, 지역)
type Holiday struct {
	Date   Day
	Name   string
	Region string
	Kind   string
}

// Label returns the feature label of the holiday, e.g. "Tweede Kerstdag" -> "tweede_kerstdag".
func (h Holiday) Label() string {
	name := h.Name
	if h.Region != "" {
		name += " " + h.Region
	}
	return Label(name)
}

// Label normalises a holiday name into a feature-name fragment.
func Label(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// Day 달력 날짜 (timestamp의 자체 location 기준)
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar day of t in t's location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay parses YYYY-MM-DD.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Day{}, err
	}
	return DayOf(t), nil
}

// AddDays returns the day n days later (negative n goes back).
func (d Day) AddDays(n int) Day {
	return DayOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// Weekday returns the day of the week.
func (d Day) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// IsWeekend reports Saturday or Sunday.
func (d Day) IsWeekend() bool {
	w := d.Weekday()
	return w == time.Saturday || w == time.Sunday
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Day) before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// ParseHolidays reads holiday reference data.
// Required columns: date (or datum) and name. Optional: region, type (national|school).
func ParseHolidays(r io.Reader) ([]Holiday, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("holidays: read header: %w", err)
	}

	col := map[string]int{"date": -1, "name": -1, "region": -1, "type": -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "datum":
			col["date"] = i
		case "name":
			col["name"] = i
		case "region":
			col["region"] = i
		case "type", "kind":
			col["type"] = i
		}
	}
	if col["date"] < 0 || col["name"] < 0 {
		return nil, fmt.Errorf("holidays: header %v needs date and name columns", header)
	}

	var out []Holiday
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("holidays: line %d: %w", line, err)
		}
		day, err := ParseDay(rec[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("holidays: line %d: %w", line, err)
		}
		h := Holiday{Date: day, Name: strings.TrimSpace(rec[col["name"]]), Kind: KindNational}
		if i := col["region"]; i >= 0 {
			h.Region = strings.TrimSpace(rec[i])
		}
		if i := col["type"]; i >= 0 {
			switch kind := strings.ToLower(strings.TrimSpace(rec[i])); kind {
			case "", KindNational:
			case KindSchool:
				h.Kind = KindSchool
			default:
				return nil, fmt.Errorf("holidays: line %d: unknown type %q", line, kind)
			}
		}
		if h.Name == "" {
			return nil, fmt.Errorf("holidays: line %d: empty name", line)
		}
		out = append(out, h)
	}
	return out, nil
}

// LoadHolidayFiles reads and concatenates holiday CSV files.
func LoadHolidayFiles(paths ...string) ([]Holiday, error) {
	var out []Holiday
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open holiday file: %w", err)
		}
		hs, err := ParseHolidays(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, hs...)
	}
	return out, nil
}

// BridgeDay 휴일에 딸린 브릿지 데이
type BridgeDay struct {
	Day     Day
	Holiday Holiday
}

// BridgeDays detects bridge days around the national holidays.
//
// For a holiday H, H+1 is a bridge day when H+2 is a holiday or a Saturday and
// H+1 is neither a holiday nor a weekend day. Symmetrically H-1 is a bridge day
// when H-2 is a holiday or a Sunday and H-1 is neither. A holiday is never a bridge day.
func BridgeDays(national []Holiday) []BridgeDay {
	holidays := make(map[Day]struct{}, len(national))
	for _, h := range national {
		holidays[h.Date] = struct{}{}
	}
	isHoliday := func(d Day) bool {
		_, ok := holidays[d]
		return ok
	}

	seen := make(map[BridgeDay]struct{})
	var out []BridgeDay
	add := func(d Day, h Holiday) {
		b := BridgeDay{Day: d, Holiday: h}
		if _, dup := seen[b]; dup {
			return
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}

	for _, h := range national {
		next, afterNext := h.Date.AddDays(1), h.Date.AddDays(2)
		if (isHoliday(afterNext) || afterNext.Weekday() == time.Saturday) &&
			!isHoliday(next) && !next.IsWeekend() {
			add(next, h)
		}

		prev, beforePrev := h.Date.AddDays(-1), h.Date.AddDays(-2)
		if (isHoliday(beforePrev) || beforePrev.Weekday() == time.Sunday) &&
			!isHoliday(prev) && !prev.IsWeekend() {
			add(prev, h)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Day.before(out[j].Day) })
	return out
}

// HolidayFunctions builds the holiday feature functions:
// one is_<label> mask per distinct label, is_national_holiday, is_bridgeday with a
// per-holiday is_bridgeday<label>, and is_schoolholiday when school holidays are given.
func HolidayFunctions(holidays []Holiday) Functions {
	fns := make(Functions)

	var national, school []Holiday
	for _, h := range holidays {
		if h.Kind == KindSchool {
			school = append(school, h)
		} else {
			national = append(national, h)
		}
	}

	byLabel := make(map[string][]Day)
	var labels []string
	for _, h := range holidays {
		l := h.Label()
		if _, ok := byLabel[l]; !ok {
			labels = append(labels, l)
		}
		byLabel[l] = append(byLabel[l], h.Date)
	}
	for _, l := range labels {
		fns["is_"+l] = DayMask(byLabel[l]...)
	}

	fns[FeatureNationalHoliday] = DayMask(days(national)...)

	bridges := BridgeDays(national)
	bridgeByLabel := make(map[string][]Day)
	all := make([]Day, 0, len(bridges))
	for _, b := range bridges {
		l := b.Holiday.Label()
		bridgeByLabel[l] = append(bridgeByLabel[l], b.Day)
		all = append(all, b.Day)
	}
	for l, ds := range bridgeByLabel {
		fns[FeatureBridgeDay+l] = DayMask(ds...)
	}
	fns[FeatureBridgeDay] = DayMask(all...)

	if len(school) > 0 {
		fns[FeatureSchoolHoliday] = DayMask(days(school)...)
	}
	return fns
}

func days(hs []Holiday) []Day {
	out := make([]Day, len(hs))
	for i, h := range hs {
		out[i] = h.Date
	}
	return out
}
