package model

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the base unit a recurrence rule steps by.
type Frequency int

const (
	FrequencyUnspecified Frequency = iota
	FrequencyMinutely
	FrequencyHourly
	FrequencyDaily
	FrequencyWeekly
	FrequencyMonthly
	FrequencyYearly
)

var frequencyNames = []string{"UNSPECIFIED", "MINUTELY", "HOURLY", "DAILY", "WEEKLY", "MONTHLY", "YEARLY"}

// String returns the upper-case name of the frequency.
func (f Frequency) String() string { return enumName(frequencyNames, int(f)) }

// Valid reports whether f is a recognised, specified frequency.
func (f Frequency) Valid() bool { return f > FrequencyUnspecified && f <= FrequencyYearly }

// ParseFrequency converts a name such as "weekly" into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	i, err := enumParse(frequencyNames, "frequency", s)
	return Frequency(i), err
}

func (f Frequency) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Frequency) UnmarshalText(b []byte) error {
	v, err := ParseFrequency(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Weekday identifies a day of the week, Monday first.
type Weekday int

const (
	WeekdayUnspecified Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = []string{"UNSPECIFIED", "MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

func (w Weekday) String() string { return enumName(weekdayNames, int(w)) }

// Valid reports whether w names an actual day.
func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

// Time converts w to the standard library weekday.
func (w Weekday) Time() time.Weekday {
	if w == Sunday {
		return time.Sunday
	}
	return time.Weekday(w)
}

// WeekdayOf returns the Weekday of a standard library weekday.
func WeekdayOf(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return Weekday(d)
}

func ParseWeekday(s string) (Weekday, error) {
	i, err := enumParse(weekdayNames, "weekday", s)
	return Weekday(i), err
}

func (w Weekday) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *Weekday) UnmarshalText(b []byte) error {
	v, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// ComponentCategory is an opaque classification of microgrid components.
type ComponentCategory int

const (
	CategoryUnspecified ComponentCategory = iota
	CategoryGrid
	CategoryMeter
	CategoryInverter
	CategoryConverter
	CategoryBattery
	CategoryEVCharger
	CategoryCHP
	CategoryElectrolyzer
	CategoryPrecharger
	CategoryFuse
	CategoryVoltageTransformer
	CategoryHVAC
)

var categoryNames = []string{
	"UNSPECIFIED", "GRID", "METER", "INVERTER", "CONVERTER", "BATTERY", "EV_CHARGER",
	"CHP", "ELECTROLYZER", "PRECHARGER", "FUSE", "VOLTAGE_TRANSFORMER", "HVAC",
}

func (c ComponentCategory) String() string { return enumName(categoryNames, int(c)) }

// Valid reports whether c is a specified category.
func (c ComponentCategory) Valid() bool {
	return c > CategoryUnspecified && int(c) < len(categoryNames)
}

func ParseComponentCategory(s string) (ComponentCategory, error) {
	i, err := enumParse(categoryNames, "component category", s)
	return ComponentCategory(i), err
}

func (c ComponentCategory) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ComponentCategory) UnmarshalText(b []byte) error {
	v, err := ParseComponentCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return "UNKNOWN"
	}
	return names[i]
}

func enumParse(names []string, kind, s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}
