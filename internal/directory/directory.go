// Package directory holds the static teacher directory: which teachers may
// take which subject, in preference order, plus the fixed slot grid. Teacher
// identity is normalised exactly once, when the directory is built; every
// downstream component works with the resolved Teacher value.
package directory

import (
	"sort"
	"strings"
)

// TeacherID is the normalised identity key of a teacher: upper-cased with
// everything but letters and digits stripped, so "Bharti Ma'am",
// "bharti maam" and "BHARTI_MAAM" all resolve to the same teacher.
type TeacherID string

// NormalizeTeacherKey derives the identity key from any spelling of a
// teacher's name.
func NormalizeTeacherKey(name string) TeacherID {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return TeacherID(b.String())
}

// Teacher is one directory entry.
type Teacher struct {
	ID          TeacherID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
}

// Directory maps subjects to ordered candidate lists. The order encodes
// preference: resolution always picks the earliest eligible candidate.
type Directory struct {
	subjects map[string][]TeacherID
	teachers map[TeacherID]Teacher
}

// defaultSubjects is the production mapping, first-listed is most preferred.
var defaultSubjects = map[string][]string{
	"Hindi":       {"Bharti Ma'am"},
	"Mathematics": {"Vivek Sir"},
	"GK":          {"Dakshika", "Ishita"},
	"SST":         {"Ishita", "Shivangi"},
	"Science":     {"Kalpana Ma'am", "Payal", "Sneha"},
	"English":     {"Aparajita", "Deepanshi", "Megha"},
	"Pre Primary": {"Yaindrila Ma'am"},
	"EVS":         {"Yaindrila Ma'am", "Kalpana Ma'am"},
	"Computer":    {"Arpit", "Geetanjali"},
}

// Default returns the built-in directory.
func Default() *Directory {
	return NewDirectory(defaultSubjects)
}

// NewDirectory builds a directory from subject → ordered display-name lists.
func NewDirectory(subjects map[string][]string) *Directory {
	d := &Directory{
		subjects: make(map[string][]TeacherID, len(subjects)),
		teachers: make(map[TeacherID]Teacher),
	}
	for subject, names := range subjects {
		ids := make([]TeacherID, 0, len(names))
		for _, name := range names {
			id := NormalizeTeacherKey(name)
			if id == "" {
				continue
			}
			if _, ok := d.teachers[id]; !ok {
				d.teachers[id] = Teacher{ID: id, DisplayName: name}
			}
			ids = append(ids, id)
		}
		d.subjects[subject] = ids
	}
	return d
}

// WithEmails attaches contact addresses keyed by any spelling of the
// teacher's name. Unknown keys are ignored.
func (d *Directory) WithEmails(emails map[string]string) *Directory {
	for key, email := range emails {
		id := NormalizeTeacherKey(key)
		if t, ok := d.teachers[id]; ok {
			t.Email = email
			d.teachers[id] = t
		}
	}
	return d
}

// CandidatesFor returns the ordered candidate list for a subject. The result
// is a fresh slice; callers may not reorder the directory itself.
func (d *Directory) CandidatesFor(subject string) []Teacher {
	ids, ok := d.subjects[subject]
	if !ok {
		return nil
	}
	out := make([]Teacher, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.teachers[id])
	}
	return out
}

// KnownSubject reports whether the subject has a candidate list.
func (d *Directory) KnownSubject(subject string) bool {
	_, ok := d.subjects[subject]
	return ok
}

// Subjects returns the known subjects, sorted.
func (d *Directory) Subjects() []string {
	out := make([]string, 0, len(d.subjects))
	for s := range d.subjects {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves any spelling of a teacher name to its directory entry.
func (d *Directory) Lookup(name string) (Teacher, bool) {
	t, ok := d.teachers[NormalizeTeacherKey(name)]
	return t, ok
}
