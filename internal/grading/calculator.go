package grading

import "github.com/noah-isme/class-record-api/internal/models"

// CalculateTerm computes the term grade from one student's items of a single
// term. Items are grouped by normalized component name; only components that
// carry weight in the config and have at least one item contribute. When no
// component contributes the grade point stays nil.
func CalculateTerm(term models.Term, items []models.GradeItem, config models.GradingConfig) models.TermGrade {
	type bucket struct {
		score    float64
		maxScore float64
		items    int
	}
	grouped := make(map[string]*bucket)
	for _, item := range items {
		if item.Term != term {
			continue
		}
		name := NormalizeComponent(item.Component)
		b, ok := grouped[name]
		if !ok {
			b = &bucket{}
			grouped[name] = b
		}
		b.score += item.Score
		b.maxScore += item.MaxScore
		b.items++
	}

	result := models.TermGrade{Term: term, Components: []models.ComponentResult{}}
	totalWeighted := 0.0
	totalWeight := 0.0
	for _, comp := range config.Components {
		if comp.Weight <= 0 {
			continue
		}
		b, ok := grouped[NormalizeComponent(comp.Name)]
		if !ok || b.items == 0 || b.maxScore <= 0 {
			continue
		}
		pct := b.score / b.maxScore * 100
		totalWeighted += pct * comp.Weight / 100
		totalWeight += comp.Weight
		result.Components = append(result.Components, models.ComponentResult{
			Name:     comp.Name,
			Weight:   comp.Weight,
			Items:    b.items,
			Score:    b.score,
			MaxScore: b.maxScore,
			Percent:  round2(pct),
		})
	}

	if totalWeight == 0 {
		return result
	}
	finalPct := totalWeighted / totalWeight * 100
	point := GradePoint(finalPct)
	rounded := round2(finalPct)
	result.GradePoint = &point
	result.WeightedPercent = &rounded
	return result
}

// Summarize averages the two term grade points. The summary exists only when
// both terms are graded; otherwise the verdict is Incomplete.
func Summarize(midterm, final models.TermGrade) (*float64, models.SummaryStatus) {
	if midterm.GradePoint == nil || final.GradePoint == nil {
		return nil, models.SummaryIncomplete
	}
	summary := round2((*midterm.GradePoint + *final.GradePoint) / 2)
	if summary <= PassingGradePoint {
		return &summary, models.SummaryPassed
	}
	return &summary, models.SummaryFailed
}

// StudentSummary builds the combined grade view of one student. A terminal
// attendance override replaces the verdict while leaving the computed grades
// visible.
func StudentSummary(studentID, scheduleID string, items []models.GradeItem, config models.GradingConfig, override *models.AttendanceStatus) models.GradeSummary {
	midterm := CalculateTerm(models.TermMidterm, items, config)
	final := CalculateTerm(models.TermFinal, items, config)
	summary, status := Summarize(midterm, final)
	if override != nil {
		switch *override {
		case models.AttendanceStatusDropped:
			status = models.SummaryDropped
		case models.AttendanceStatusFailedAbs:
			status = models.SummaryFailedAbsences
		}
	}
	return models.GradeSummary{
		StudentID:    studentID,
		ScheduleID:   scheduleID,
		Midterm:      midterm,
		Final:        final,
		SummaryGrade: summary,
		Status:       status,
		Override:     override,
	}
}
