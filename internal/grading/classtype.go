package grading

import (
	"strings"
	"unicode"

	"github.com/noah-isme/class-record-api/internal/models"
)

var classTypeAliases = map[string]string{
	"LECTURE":       models.ClassTypeLecture,
	"LEC":           models.ClassTypeLecture,
	"LECTURE+LAB":   models.ClassTypeLectureLab,
	"LEC+LAB":       models.ClassTypeLectureLab,
	"LECTURE/LAB":   models.ClassTypeLectureLab,
	"LECTURE&LAB":   models.ClassTypeLectureLab,
	"LECTURELAB":    models.ClassTypeLectureLab,
	"MAJOR":         models.ClassTypeMajor,
	"CISCO":         models.ClassTypeMajor,
	"MAJOR(CISCO)":  models.ClassTypeMajor,
	"MAJOR-CISCO":   models.ClassTypeMajor,
	"NSTP":          models.ClassTypeNSTP,
	"OJT":           models.ClassTypeOJT,
	"PRACTICUM":     models.ClassTypeOJT,
	"INTERNSHIP":    models.ClassTypeOJT,
	"ON-THE-JOB":    models.ClassTypeOJT,
	"ONTHEJOB":      models.ClassTypeOJT,
}

// NormalizeClassType folds case and whitespace and maps known aliases onto
// the canonical class types. Unknown values are returned folded.
func NormalizeClassType(raw string) string {
	folded := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
	if canonical, ok := classTypeAliases[folded]; ok {
		return canonical
	}
	return folded
}

// KnownClassType reports whether the value names a catalogued class type.
func KnownClassType(raw string) bool {
	_, ok := defaultTables[NormalizeClassType(raw)]
	return ok
}
