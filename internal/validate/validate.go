package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"talentworth/internal/domain"
	"talentworth/internal/jobs"
)

const (
	MinYears           = 0
	MaxYears           = 30
	MaxSkills          = 20
	MaxSkillLen        = 50
	MaxAchievementsLen = 500
)

// FieldError describes one constraint violation on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RawInput is the analysis payload before validation. YearsOfExperience
// and Achievements are pointers so that absent fields are told apart
// from zero values.
type RawInput struct {
	JobTitle          string   `json:"jobTitle"`
	YearsOfExperience *int     `json:"yearsOfExperience"`
	Skills            []string `json:"skills"`
	Achievements      *string  `json:"achievements,omitempty"`
	Education         string   `json:"education"`
}

// Input checks every constraint and returns all violations together,
// so the caller can report the complete set in one round trip. On
// success the returned input carries trimmed skills.
func Input(raw RawInput) (domain.AnalysisInput, []FieldError) {
	var errs []FieldError

	if !jobs.ValidRole(raw.JobTitle) {
		errs = append(errs, FieldError{
			Field:   "jobTitle",
			Message: fmt.Sprintf("unknown job title; allowed: %s", strings.Join(jobs.RoleIDs(), ", ")),
		})
	}

	years := -1
	if raw.YearsOfExperience == nil || *raw.YearsOfExperience < MinYears || *raw.YearsOfExperience > MaxYears {
		errs = append(errs, FieldError{
			Field:   "yearsOfExperience",
			Message: fmt.Sprintf("years of experience must be an integer between %d and %d", MinYears, MaxYears),
		})
	} else {
		years = *raw.YearsOfExperience
	}

	var skills []string
	if len(raw.Skills) == 0 || len(raw.Skills) > MaxSkills {
		errs = append(errs, FieldError{
			Field:   "skills",
			Message: fmt.Sprintf("skills must contain between 1 and %d entries", MaxSkills),
		})
	} else {
		ok := true
		for _, s := range raw.Skills {
			trimmed := strings.TrimSpace(s)
			// Limits count characters, not bytes; Korean skill names
			// are multi-byte.
			if trimmed == "" || utf8.RuneCountInString(s) > MaxSkillLen {
				ok = false
				break
			}
			skills = append(skills, trimmed)
		}
		if !ok {
			skills = nil
			errs = append(errs, FieldError{
				Field:   "skills",
				Message: fmt.Sprintf("each skill must be a non-empty string of at most %d characters", MaxSkillLen),
			})
		}
	}

	achievements := ""
	if raw.Achievements != nil {
		if utf8.RuneCountInString(*raw.Achievements) > MaxAchievementsLen {
			errs = append(errs, FieldError{
				Field:   "achievements",
				Message: fmt.Sprintf("achievements must be at most %d characters", MaxAchievementsLen),
			})
		} else {
			achievements = *raw.Achievements
		}
	}

	if !jobs.ValidEducation(raw.Education) {
		errs = append(errs, FieldError{
			Field:   "education",
			Message: fmt.Sprintf("unknown education level; allowed: %s", strings.Join(jobs.EducationLevels, ", ")),
		})
	}

	if len(errs) > 0 {
		return domain.AnalysisInput{}, errs
	}
	return domain.AnalysisInput{
		JobTitle:          raw.JobTitle,
		YearsOfExperience: years,
		Skills:            skills,
		Achievements:      achievements,
		Education:         raw.Education,
	}, nil
}
