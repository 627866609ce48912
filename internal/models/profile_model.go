package models

import "time"

// Profile is one named GPA record set owned by a user.
// Stored at users/{uid}/profiles/{id}; the whole document is rewritten on every change.
type Profile struct {
	ID          string       `json:"id" firestore:"id"`
	Name        string       `json:"name" firestore:"name"`
	UserID      string       `json:"userId" firestore:"userId"`
	IsDefault   bool         `json:"isDefault" firestore:"isDefault"`
	Semesters   []Semester   `json:"semesters" firestore:"semesters"`
	StudentInfo *StudentInfo `json:"studentInfo,omitempty" firestore:"studentInfo,omitempty"`
	UMSVerified bool         `json:"umsVerified,omitempty" firestore:"umsVerified,omitempty"`
	LastUMSSync *time.Time   `json:"lastUMSSync,omitempty" firestore:"lastUMSSync,omitempty"`
	// Version is bumped on every successful write. A save carrying an older version is rejected.
	Version   int64     `json:"version" firestore:"version"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Semester is embedded in a Profile, not a separate collection.
type Semester struct {
	ID       string    `json:"id" firestore:"id"`
	Name     string    `json:"name" firestore:"name"`
	Subjects []Subject `json:"subjects" firestore:"subjects"`
}

// Subject is one graded course. Grade is on a 10-point scale.
type Subject struct {
	ID          string  `json:"id" firestore:"id"`
	SubjectName string  `json:"subjectName" firestore:"subjectName"`
	Grade       float64 `json:"grade" firestore:"grade"`
	Credit      float64 `json:"credit" firestore:"credit"`
}

// StudentInfo is copied from the UMS portal on import.
type StudentInfo struct {
	Name               string `json:"name,omitempty" firestore:"name,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty" firestore:"registrationNumber,omitempty"`
	Program            string `json:"program,omitempty" firestore:"program,omitempty"`
	Section            string `json:"section,omitempty" firestore:"section,omitempty"`
	RollNumber         string `json:"rollNumber,omitempty" firestore:"rollNumber,omitempty"`
}

// SubjectCount returns the number of subjects across all semesters.
func (p *Profile) SubjectCount() int {
	n := 0
	for _, s := range p.Semesters {
		n += len(s.Subjects)
	}
	return n
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Semesters = CloneSemesters(p.Semesters)
	if p.StudentInfo != nil {
		info := *p.StudentInfo
		c.StudentInfo = &info
	}
	if p.LastUMSSync != nil {
		t := *p.LastUMSSync
		c.LastUMSSync = &t
	}
	return &c
}

// CloneSemesters copies semesters and their subjects by value.
func CloneSemesters(in []Semester) []Semester {
	if in == nil {
		return nil
	}
	out := make([]Semester, len(in))
	for i, s := range in {
		out[i] = Semester{ID: s.ID, Name: s.Name, Subjects: append([]Subject(nil), s.Subjects...)}
		if out[i].Subjects == nil {
			out[i].Subjects = []Subject{}
		}
	}
	return out
}
