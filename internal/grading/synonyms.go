package grading

import "strings"

// Canonical component names.
const (
	ComponentQuiz                  = "quiz"
	ComponentLaboratory            = "laboratory"
	ComponentMajorExam             = "major exam"
	ComponentCiscoExam             = "cisco exam"
	ComponentActivity              = "activity"
	ComponentProject               = "project"
	ComponentPerformanceEvaluation = "performance evaluation"
	ComponentJournal               = "journal"
	ComponentFinalReport           = "final report"
)

var componentSynonyms = map[string]string{
	"quiz":                   ComponentQuiz,
	"quizzes":                ComponentQuiz,
	"quizes":                 ComponentQuiz,
	"lab":                    ComponentLaboratory,
	"labs":                   ComponentLaboratory,
	"laboratory":             ComponentLaboratory,
	"laboratories":           ComponentLaboratory,
	"lab activity":           ComponentLaboratory,
	"lab activities":         ComponentLaboratory,
	"exam":                   ComponentMajorExam,
	"exams":                  ComponentMajorExam,
	"major exam":             ComponentMajorExam,
	"major exams":            ComponentMajorExam,
	"midterm exam":           ComponentMajorExam,
	"final exam":             ComponentMajorExam,
	"term exam":              ComponentMajorExam,
	"cisco":                  ComponentCiscoExam,
	"cisco exam":             ComponentCiscoExam,
	"cisco exams":            ComponentCiscoExam,
	"cisco assessment":       ComponentCiscoExam,
	"activity":               ComponentActivity,
	"activities":             ComponentActivity,
	"project":                ComponentProject,
	"projects":               ComponentProject,
	"performance evaluation": ComponentPerformanceEvaluation,
	"performance":            ComponentPerformanceEvaluation,
	"evaluation":             ComponentPerformanceEvaluation,
	"journal":                ComponentJournal,
	"journals":               ComponentJournal,
	"final report":           ComponentFinalReport,
	"report":                 ComponentFinalReport,
}

// NormalizeComponent lowercases the name, treats '_' and '-' as spaces,
// collapses whitespace and maps the result through the synonym table. Names
// without a synonym are returned in folded form.
func NormalizeComponent(name string) string {
	folded := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(name))
	folded = strings.Join(strings.Fields(folded), " ")
	if canonical, ok := componentSynonyms[folded]; ok {
		return canonical
	}
	return folded
}
