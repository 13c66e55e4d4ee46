// Package scheduler polls the dispatch store on a fixed tick and publishes
// a DueEvent for every active dispatch with an occurrence exactly at the
// tick instant. Ticks are aligned to multiples of the tick period in UTC,
// so occurrences on those boundaries fire exactly once.
package scheduler
