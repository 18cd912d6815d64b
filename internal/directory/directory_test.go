package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTeacherKey(t *testing.T) {
	cases := map[string]TeacherID{
		"Bharti Ma'am": "BHARTIMAAM",
		"bharti maam":  "BHARTIMAAM",
		"BHARTI_MAAM":  "BHARTIMAAM",
		"  Megha  ":    "MEGHA",
		"Vivek Sir":    "VIVEKSIR",
		"":             "",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeTeacherKey(input), "input %q", input)
	}
}

func TestDefaultDirectoryOrder(t *testing.T) {
	dir := Default()

	english := dir.CandidatesFor("English")
	require.Len(t, english, 3)
	assert.Equal(t, "Aparajita", english[0].DisplayName)
	assert.Equal(t, "Deepanshi", english[1].DisplayName)
	assert.Equal(t, "Megha", english[2].DisplayName)

	hindi := dir.CandidatesFor("Hindi")
	require.Len(t, hindi, 1)
	assert.Equal(t, "Bharti Ma'am", hindi[0].DisplayName)

	assert.Nil(t, dir.CandidatesFor("Sanskrit"))
	assert.True(t, dir.KnownSubject("EVS"))
	assert.False(t, dir.KnownSubject("Sanskrit"))
}

func TestCandidatesForReturnsFreshSlice(t *testing.T) {
	dir := Default()

	first := dir.CandidatesFor("Science")
	first[0] = Teacher{DisplayName: "mutated"}
	second := dir.CandidatesFor("Science")
	assert.Equal(t, "Kalpana Ma'am", second[0].DisplayName)
}

func TestLookupResolvesAnySpelling(t *testing.T) {
	dir := Default()

	teacher, ok := dir.Lookup("kalpana ma'am")
	require.True(t, ok)
	assert.Equal(t, "Kalpana Ma'am", teacher.DisplayName)

	_, ok = dir.Lookup("Nobody")
	assert.False(t, ok)
}

func TestWithEmails(t *testing.T) {
	dir := Default().WithEmails(map[string]string{
		"APARAJITA": "aparajita@cordova.example",
		"Nobody":    "ignored@cordova.example",
	})

	teacher, ok := dir.Lookup("Aparajita")
	require.True(t, ok)
	assert.Equal(t, "aparajita@cordova.example", teacher.Email)
}

func TestSharedTeacherAcrossSubjects(t *testing.T) {
	dir := Default()

	evs := dir.CandidatesFor("EVS")
	prePrimary := dir.CandidatesFor("Pre Primary")
	require.NotEmpty(t, evs)
	require.NotEmpty(t, prePrimary)
	assert.Equal(t, evs[0].ID, prePrimary[0].ID)
}

func TestValidSlot(t *testing.T) {
	assert.True(t, ValidSlot("10:00–10:40"))
	assert.True(t, ValidSlot("15:00–15:40"))
	assert.False(t, ValidSlot("10:00-10:40"))
	assert.False(t, ValidSlot("09:00–09:40"))
	assert.Len(t, Slots, 8)
}
