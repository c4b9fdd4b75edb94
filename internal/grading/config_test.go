package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-record-api/internal/models"
)

func TestDefaultWeightsSumToHundred(t *testing.T) {
	for _, classType := range models.ClassTypes {
		components := DefaultComponents(classType)
		require.NotEmpty(t, components, classType)
		assert.InDelta(t, 100, TotalWeight(components), 0.0001, classType)
		assert.NoError(t, ValidateComponents(components), classType)
	}
}

func TestDefaultTablesAreDistinct(t *testing.T) {
	seen := map[string]string{}
	for _, classType := range models.ClassTypes {
		signature := ""
		for _, comp := range DefaultComponents(classType) {
			signature += comp.Name + "|"
		}
		if other, dup := seen[signature]; dup {
			t.Fatalf("%s shares its table with %s", classType, other)
		}
		seen[signature] = classType
	}
}

func TestDefaultComponentsReturnsCopy(t *testing.T) {
	first := DefaultComponents(models.ClassTypeNSTP)
	first[0].Weight = 99
	assert.Equal(t, 40.0, DefaultComponents(models.ClassTypeNSTP)[0].Weight)
}

func TestNormalizeClassType(t *testing.T) {
	assert.Equal(t, models.ClassTypeLectureLab, NormalizeClassType(" lecture + lab "))
	assert.Equal(t, models.ClassTypeLectureLab, NormalizeClassType("Lec+Lab"))
	assert.Equal(t, models.ClassTypeMajor, NormalizeClassType("cisco"))
	assert.Equal(t, models.ClassTypeOJT, NormalizeClassType("ojt"))
	assert.Equal(t, "SEMINAR", NormalizeClassType(" seminar"))
	assert.True(t, KnownClassType("nstp"))
	assert.False(t, KnownClassType("seminar"))
}

func TestResolveDropsMalformedEntries(t *testing.T) {
	stored := []models.GradingComponent{
		{Name: "Quizzes", Weight: 50, Items: 4, MaxScore: 25},
		{Name: "", Weight: 10, Items: 1, MaxScore: 10},
		{Name: "recitation", Weight: 10, Items: 0, MaxScore: 10},
		{Name: "seatwork", Weight: 10, Items: 2, MaxScore: 0},
		{Name: "Exam", Weight: 50, Items: 1, MaxScore: 100},
	}

	config := Resolve("lecture", stored)
	assert.Equal(t, models.ConfigSourceStored, config.Source)
	require.Len(t, config.Components, 2)
	assert.Equal(t, ComponentQuiz, config.Components[0].Name)
	assert.Equal(t, ComponentMajorExam, config.Components[1].Name)
	assert.Equal(t, 1, config.Components[1].Position)
	assert.Equal(t, models.ClassTypeLecture, config.Components[1].ClassType)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	stored := []models.GradingComponent{{Name: "quiz", Weight: 100, Items: 0, MaxScore: 10}}

	config := Resolve("OJT", stored)
	assert.Equal(t, models.ConfigSourceDefault, config.Source)
	assert.Equal(t, DefaultComponents(models.ClassTypeOJT)[0].Name, config.Components[0].Name)

	unknown := Resolve("seminar", nil)
	assert.Equal(t, "SEMINAR", unknown.ClassType)
	assert.Equal(t, DefaultComponents(models.ClassTypeLecture)[0].Name, unknown.Components[0].Name)
}

func TestLookupUsesSynonyms(t *testing.T) {
	config := Resolve(models.ClassTypeLectureLab, nil)
	comp, ok := Lookup(config, "Labs")
	require.True(t, ok)
	assert.Equal(t, ComponentLaboratory, comp.Name)
	assert.Equal(t, 50.0, comp.MaxScore)

	_, ok = Lookup(config, "cisco")
	assert.False(t, ok)
}

func TestValidateComponents(t *testing.T) {
	valid := []models.GradingComponent{
		{Name: "quiz", Weight: 40, Items: 2, MaxScore: 10},
		{Name: "exam", Weight: 60, Items: 1, MaxScore: 50},
	}
	assert.NoError(t, ValidateComponents(valid))

	assert.Error(t, ValidateComponents(nil))
	assert.Error(t, ValidateComponents([]models.GradingComponent{{Name: "quiz", Weight: 50, Items: 1, MaxScore: 10}}))
	assert.Error(t, ValidateComponents([]models.GradingComponent{
		{Name: "quiz", Weight: 50, Items: 1, MaxScore: 10},
		{Name: "Quizzes", Weight: 50, Items: 1, MaxScore: 10},
	}))
	assert.Error(t, ValidateComponents([]models.GradingComponent{{Name: "quiz", Weight: 100, Items: 0, MaxScore: 10}}))
	assert.Error(t, ValidateComponents([]models.GradingComponent{{Name: "quiz", Weight: 100, Items: 1, MaxScore: -1}}))
}

func TestNormalizeComponent(t *testing.T) {
	assert.Equal(t, ComponentQuiz, NormalizeComponent("Quizzes"))
	assert.Equal(t, ComponentLaboratory, NormalizeComponent("LAB"))
	assert.Equal(t, ComponentMajorExam, NormalizeComponent("  Major   Exams "))
	assert.Equal(t, ComponentMajorExam, NormalizeComponent("final_exam"))
	assert.Equal(t, ComponentCiscoExam, NormalizeComponent("Cisco-Assessment"))
	assert.Equal(t, "oral recitation", NormalizeComponent("Oral  Recitation"))
}
