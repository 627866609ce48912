package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/studentkit/internal/calculator"
	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/models"
)

const (
	DefaultProfileName = "Default Profile"
	firstSemesterName  = "Semester 1"
)

func newID() string { return uuid.NewString() }

func emptySemester(name string) models.Semester {
	return models.Semester{ID: newID(), Name: name, Subjects: []models.Subject{}}
}

// newProfile builds a profile with one empty semester.
func newProfile(userID, name string, now time.Time) *models.Profile {
	return &models.Profile{
		ID:        newID(),
		Name:      name,
		UserID:    userID,
		Semesters: []models.Semester{emptySemester(firstSemesterName)},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func nameKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// nameTaken reports whether another profile in set already uses name.
func nameTaken(set *db.ProfileSet, name, exceptID string) bool {
	key := nameKey(name)
	for _, p := range set.Profiles() {
		if p.ID != exceptID && nameKey(p.Name) == key {
			return true
		}
	}
	return false
}

// uniqueName returns name, or name with " (Copy)", " (Copy 2)", ... appended until it
// does not clash with the set.
func uniqueName(set *db.ProfileSet, name string) string {
	if !nameTaken(set, name, "") {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + " (Copy)"
		if i > 1 {
			candidate = fmt.Sprintf("%s (Copy %d)", name, i)
		}
		if !nameTaken(set, candidate, "") {
			return candidate
		}
	}
}

// sortProfiles orders default first, then by name case-insensitively.
func sortProfiles(profiles []*models.Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].IsDefault != profiles[j].IsDefault {
			return profiles[i].IsDefault
		}
		return strings.ToLower(profiles[i].Name) < strings.ToLower(profiles[j].Name)
	})
}

// prepareSemesters validates grades and credits and assigns ids where missing.
func prepareSemesters(semesters []models.Semester) ([]models.Semester, error) {
	if len(semesters) == 0 {
		return nil, ErrNoSemesters
	}
	out := models.CloneSemesters(semesters)
	for i := range out {
		sem := &out[i]
		if sem.ID == "" {
			sem.ID = newID()
		}
		if strings.TrimSpace(sem.Name) == "" {
			sem.Name = fmt.Sprintf("Semester %d", i+1)
		}
		for j := range sem.Subjects {
			sub := &sem.Subjects[j]
			if err := calculator.ValidateSubject(*sub); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidSubject, err)
			}
			if sub.ID == "" {
				sub.ID = newID()
			}
		}
	}
	return out, nil
}

// ensureOneDefault makes exactly one profile default, preferring an existing default,
// then the oldest profile. Changed profiles are written back to the set.
func ensureOneDefault(set *db.ProfileSet, now time.Time) {
	profiles := set.Profiles()
	if len(profiles) == 0 {
		return
	}
	keep := ""
	for _, p := range profiles {
		if p.IsDefault {
			keep = p.ID
			break
		}
	}
	if keep == "" {
		keep = profiles[0].ID
	}
	for _, p := range profiles {
		want := p.ID == keep
		if p.IsDefault != want {
			p.IsDefault = want
			touch(p, now)
			set.Put(p)
		}
	}
}

func touch(p *models.Profile, now time.Time) {
	p.Version++
	p.UpdatedAt = now
}

// addProfileCopy stores semesters as a new profile of userID with a de-duplicated name.
func addProfileCopy(set *db.ProfileSet, userID, name string, semesters []models.Semester, now time.Time) *models.Profile {
	p := newProfile(userID, uniqueName(set, name), now)
	p.Semesters = models.CloneSemesters(semesters)
	if len(p.Semesters) == 0 {
		p.Semesters = []models.Semester{emptySemester(firstSemesterName)}
	}
	p.IsDefault = set.Len() == 0
	set.Put(p)
	return p
}

// ProfileSummary is the computed GPA view of a profile.
type ProfileSummary struct {
	ProfileID    string            `json:"profileId"`
	Name         string            `json:"name"`
	Semesters    []SemesterSummary `json:"semesters"`
	CGPA         string            `json:"cgpa"`
	TotalCredits float64           `json:"totalCredits"`
	SubjectCount int               `json:"subjectCount"`
}

type SemesterSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	GPA          string  `json:"gpa"`
	Credits      float64 `json:"credits"`
	SubjectCount int     `json:"subjectCount"`
}

func summarize(p *models.Profile) *ProfileSummary {
	out := &ProfileSummary{
		ProfileID:    p.ID,
		Name:         p.Name,
		Semesters:    make([]SemesterSummary, 0, len(p.Semesters)),
		CGPA:         calculator.FormatGPA(calculator.CGPA(p.Semesters)),
		SubjectCount: p.SubjectCount(),
	}
	for _, sem := range p.Semesters {
		credits := calculator.TotalCredits(sem.Subjects)
		out.TotalCredits += credits
		out.Semesters = append(out.Semesters, SemesterSummary{
			ID:           sem.ID,
			Name:         sem.Name,
			GPA:          calculator.FormatGPA(calculator.SemesterGPA(sem.Subjects)),
			Credits:      credits,
			SubjectCount: len(sem.Subjects),
		})
	}
	return out
}
