package grading

import "github.com/noah-isme/class-record-api/internal/models"

var defaultTables = map[string][]models.GradingComponent{
	models.ClassTypeLecture: {
		{Name: ComponentQuiz, Weight: 60, Items: 3, MaxScore: 20},
		{Name: ComponentMajorExam, Weight: 40, Items: 1, MaxScore: 60},
	},
	models.ClassTypeLectureLab: {
		{Name: ComponentQuiz, Weight: 30, Items: 3, MaxScore: 20},
		{Name: ComponentLaboratory, Weight: 40, Items: 5, MaxScore: 50},
		{Name: ComponentMajorExam, Weight: 30, Items: 1, MaxScore: 60},
	},
	models.ClassTypeMajor: {
		{Name: ComponentQuiz, Weight: 20, Items: 3, MaxScore: 20},
		{Name: ComponentLaboratory, Weight: 30, Items: 5, MaxScore: 50},
		{Name: ComponentCiscoExam, Weight: 20, Items: 1, MaxScore: 100},
		{Name: ComponentMajorExam, Weight: 30, Items: 1, MaxScore: 60},
	},
	models.ClassTypeNSTP: {
		{Name: ComponentActivity, Weight: 40, Items: 5, MaxScore: 20},
		{Name: ComponentProject, Weight: 30, Items: 1, MaxScore: 100},
		{Name: ComponentMajorExam, Weight: 30, Items: 1, MaxScore: 60},
	},
	models.ClassTypeOJT: {
		{Name: ComponentPerformanceEvaluation, Weight: 60, Items: 1, MaxScore: 100},
		{Name: ComponentJournal, Weight: 20, Items: 10, MaxScore: 10},
		{Name: ComponentFinalReport, Weight: 20, Items: 1, MaxScore: 100},
	},
}

// DefaultComponents returns a copy of the built-in table for the class type.
// Unknown class types get the LECTURE table.
func DefaultComponents(classType string) []models.GradingComponent {
	table, ok := defaultTables[NormalizeClassType(classType)]
	if !ok {
		table = defaultTables[models.ClassTypeLecture]
	}
	out := make([]models.GradingComponent, len(table))
	copy(out, table)
	for i := range out {
		out[i].Position = i
	}
	return out
}
