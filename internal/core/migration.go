package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/models"
)

// ErrInvalidLegacyData is returned when the local-storage dump cannot be parsed.
var ErrInvalidLegacyData = errors.New("legacy local storage data is not valid")

// MigrationResult reports what MigrateFromLocalStorage wrote.
type MigrationResult struct {
	Imported        int      `json:"imported"`
	Renamed         []string `json:"renamed,omitempty"`
	ActiveProfileID string   `json:"activeProfileId,omitempty"`
	Preferences     bool     `json:"preferencesUpdated"`
}

// legacyProfile is the shape the web client kept in local storage. Ids were
// Date.now() numbers and form fields were sometimes saved as strings.
type legacyProfile struct {
	ID        flexString       `json:"id"`
	Name      string           `json:"name"`
	IsDefault bool             `json:"isDefault"`
	Semesters []legacySemester `json:"semesters"`
}

type legacySemester struct {
	ID       flexString      `json:"id"`
	Name     string          `json:"name"`
	Subjects []legacySubject `json:"subjects"`
}

type legacySubject struct {
	ID          flexString `json:"id"`
	SubjectName string     `json:"subjectName"`
	Grade       flexFloat  `json:"grade"`
	Credit      flexFloat  `json:"credit"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or a numeric string; an empty string is zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// parseLegacyProfiles accepts either an array of profiles or an object keyed by id.
func parseLegacyProfiles(raw string) ([]legacyProfile, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var list []legacyProfile
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, nil
	}
	var byID map[string]legacyProfile
	if err := json.Unmarshal([]byte(raw), &byID); err != nil {
		return nil, fmt.Errorf("%w: gpaProfiles: %v", ErrInvalidLegacyData, err)
	}
	for id, p := range byID {
		if p.ID == "" {
			p.ID = flexString(id)
		}
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// legacyNamespace scopes the ids derived for legacy records saved without one.
var legacyNamespace = uuid.MustParse("6f1c2f9e-3a57-4d0b-9b7e-2c41d8a0e5b3")

func legacyID(parts ...string) string {
	return uuid.NewSHA1(legacyNamespace, []byte(strings.Join(parts, "|"))).String()
}

// fillIDs gives every record without an id one derived from its owner and position,
// so importing the same dump twice targets the same documents.
func (lp *legacyProfile) fillIDs(userID string, index int) {
	if lp.ID == "" {
		lp.ID = flexString(legacyID(userID, strconv.Itoa(index), strings.TrimSpace(lp.Name)))
	}
	for i := range lp.Semesters {
		sem := &lp.Semesters[i]
		if sem.ID == "" {
			sem.ID = flexString(legacyID(string(lp.ID), "semester", strconv.Itoa(i)))
		}
		for j := range sem.Subjects {
			if sem.Subjects[j].ID == "" {
				sem.Subjects[j].ID = flexString(legacyID(string(sem.ID), "subject", strconv.Itoa(j)))
			}
		}
	}
}

// unquote reads a local-storage value that may or may not be JSON encoded.
func unquote(raw string) string {
	raw = strings.TrimSpace(raw)
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return raw
}

func (lp legacyProfile) toProfile(userID string) *models.Profile {
	p := &models.Profile{
		ID:        string(lp.ID),
		Name:      strings.TrimSpace(lp.Name),
		UserID:    userID,
		IsDefault: lp.IsDefault,
	}
	if p.Name == "" {
		p.Name = "Imported Profile"
	}
	for i, ls := range lp.Semesters {
		sem := models.Semester{ID: string(ls.ID), Name: strings.TrimSpace(ls.Name), Subjects: []models.Subject{}}
		if sem.Name == "" {
			sem.Name = fmt.Sprintf("Semester %d", i+1)
		}
		for _, sub := range ls.Subjects {
			subject := models.Subject{
				ID:          string(sub.ID),
				SubjectName: strings.TrimSpace(sub.SubjectName),
				Grade:       float64(sub.Grade),
				Credit:      float64(sub.Credit),
			}
			sem.Subjects = append(sem.Subjects, subject)
		}
		p.Semesters = append(p.Semesters, sem)
	}
	if len(p.Semesters) == 0 {
		p.Semesters = []models.Semester{emptySemester(firstSemesterName)}
	}
	return p
}

// MigrateFromLocalStorage imports profiles by id, overwriting earlier imports, so running
// it again with the same dump rewrites the same documents. An auto-created empty
// profile that clashes by name with an imported one is dropped; any other clash gets
// the imported profile renamed.
func (s *profileService) MigrateFromLocalStorage(ctx context.Context, userID string, legacy models.LegacyStorage) (*MigrationResult, error) {
	legacyProfiles, err := parseLegacyProfiles(legacy.GPAProfiles)
	if err != nil {
		return nil, err
	}
	for i := range legacyProfiles {
		legacyProfiles[i].fillIDs(userID, i)
	}
	for _, lp := range legacyProfiles {
		if _, err := prepareSemesters(lp.toProfile(userID).Semesters); err != nil {
			return nil, fmt.Errorf("%w: profile %q: %w", ErrInvalidLegacyData, lp.Name, err)
		}
	}
	activeID := unquote(legacy.ActiveGPAProfile)

	imported := map[string]bool{}
	for _, lp := range legacyProfiles {
		imported[string(lp.ID)] = true
	}

	result := &MigrationResult{}
	now := s.now()
	err = s.profiles.Mutate(ctx, userID, func(set *db.ProfileSet) error {
		result.Imported = 0
		result.Renamed = nil
		for _, lp := range legacyProfiles {
			p := lp.toProfile(userID)
			for _, existing := range set.Profiles() {
				if existing.ID == p.ID || nameKey(existing.Name) != nameKey(p.Name) {
					continue
				}
				if existing.SubjectCount() == 0 && !imported[existing.ID] {
					p.IsDefault = p.IsDefault || existing.IsDefault
					set.Delete(existing.ID)
					continue
				}
				original := p.Name
				p.Name = uniqueImportName(set, p.Name, p.ID)
				result.Renamed = append(result.Renamed, original+" -> "+p.Name)
				break
			}
			if existing := set.Get(p.ID); existing != nil {
				p.CreatedAt = existing.CreatedAt
				p.Version = existing.Version + 1
			} else {
				p.CreatedAt = now
				p.Version = 1
			}
			p.UpdatedAt = now
			set.Put(p)
			result.Imported++
		}
		if activeID != "" && set.Get(activeID) != nil {
			hasDefault := false
			for _, p := range set.Profiles() {
				hasDefault = hasDefault || p.IsDefault
			}
			if !hasDefault {
				p := set.Get(activeID)
				p.IsDefault = true
				set.Put(p)
			}
			result.ActiveProfileID = activeID
		}
		ensureOneDefault(set, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate local storage for user '%s': %w", userID, err)
	}

	updated, err := s.migratePreferences(ctx, userID, legacy, result.ActiveProfileID)
	if err != nil {
		// Profiles are the valuable part; preferences can be set again from the settings page.
		s.logger.Warn("Failed to migrate preferences", zap.String("userID", userID), zap.Error(err))
	}
	result.Preferences = updated
	s.logger.Info("Migrated local storage",
		zap.String("userID", userID), zap.Int("profiles", result.Imported), zap.Strings("renamed", result.Renamed))
	return result, nil
}

func uniqueImportName(set *db.ProfileSet, name, selfID string) string {
	candidate := name + " (Imported)"
	for i := 2; nameTaken(set, candidate, selfID); i++ {
		candidate = fmt.Sprintf("%s (Imported %d)", name, i)
	}
	return candidate
}

func (s *profileService) migratePreferences(ctx context.Context, userID string, legacy models.LegacyStorage, activeID string) (bool, error) {
	theme := unquote(legacy.Theme)
	var termIDs []string
	if raw := strings.TrimSpace(legacy.UMSTermIDs); raw != "" {
		if err := json.Unmarshal([]byte(raw), &termIDs); err != nil {
			return false, fmt.Errorf("%w: umsTermIds: %v", ErrInvalidLegacyData, err)
		}
	}
	if theme == "" && len(termIDs) == 0 && activeID == "" {
		return false, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		user = &models.User{ID: userID, CreatedAt: s.now()}
	} else if err != nil {
		return false, err
	}
	if theme == models.ThemeLight || theme == models.ThemeDark {
		user.Preferences.Theme = theme
	}
	if len(termIDs) > 0 {
		user.Preferences.UMSTermIDs = termIDs
	}
	if activeID != "" {
		user.Preferences.ActiveProfileID = activeID
	}
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}
