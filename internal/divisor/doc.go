// Package divisor picks a divisor of an integer, either from an ordered list
// of preferred candidates or, when none of them divides the subject, by
// falling back to the nearest divisor below or above a threshold.
//
// Every function is pure. Non-fatal decisions (a zero candidate being dropped,
// a threshold at or above the subject) are reported as Advisory values to the
// Searcher's Notifier rather than returned as errors.
//
//	s := divisor.NewSearcher(divisor.WithLogger(logger))
//	d, err := s.Search(45, divisor.StrategyNearestAbove, 7, []int{8, 15}) // 15
package divisor
