package grading

import "math"

// PassingGradePoint is the worst grade point that still passes.
const PassingGradePoint = 3.0

// FailingGradePoint is assigned below the lowest threshold.
const FailingGradePoint = 5.0

type threshold struct {
	minPercent float64
	gradePoint float64
}

// gradeScale is ordered by descending percentage; lower grade points are better.
var gradeScale = []threshold{
	{98, 1.00},
	{95, 1.25},
	{92, 1.50},
	{89, 1.75},
	{86, 2.00},
	{83, 2.25},
	{80, 2.50},
	{77, 2.75},
	{75, 3.00},
}

// GradePoint maps a weighted percentage onto the grade point scale.
func GradePoint(percent float64) float64 {
	for _, t := range gradeScale {
		if percent >= t.minPercent {
			return t.gradePoint
		}
	}
	return FailingGradePoint
}

// round2 rounds half to even at two decimals.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// round1 rounds half away from zero at one decimal.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
