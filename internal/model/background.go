package model

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// UserBackground is the applicant background submitted for analysis.
type UserBackground struct {
	UndergraduateUniversity string  `json:"undergraduate_university" yaml:"undergraduate_university" validate:"required"`
	UndergraduateMajor      string  `json:"undergraduate_major" yaml:"undergraduate_major" validate:"required"`
	GPA                     float64 `json:"gpa" yaml:"gpa" validate:"gt=0"`
	GPAScale                string  `json:"gpa_scale" yaml:"gpa_scale" validate:"required,numeric"`
	GraduationYear          int     `json:"graduation_year" yaml:"graduation_year" validate:"gte=1950,lte=2100"`

	LanguageTestType   string   `json:"language_test_type,omitempty" yaml:"language_test_type,omitempty"`
	LanguageTotalScore *float64 `json:"language_total_score,omitempty" yaml:"language_total_score,omitempty" validate:"omitempty,gte=0"`
	LanguageReading    *float64 `json:"language_reading,omitempty" yaml:"language_reading,omitempty" validate:"omitempty,gte=0"`
	LanguageListening  *float64 `json:"language_listening,omitempty" yaml:"language_listening,omitempty" validate:"omitempty,gte=0"`
	LanguageSpeaking   *float64 `json:"language_speaking,omitempty" yaml:"language_speaking,omitempty" validate:"omitempty,gte=0"`
	LanguageWriting    *float64 `json:"language_writing,omitempty" yaml:"language_writing,omitempty" validate:"omitempty,gte=0"`

	GRETotal        *int     `json:"gre_total,omitempty" yaml:"gre_total,omitempty" validate:"omitempty,gte=260,lte=340"`
	GREVerbal       *int     `json:"gre_verbal,omitempty" yaml:"gre_verbal,omitempty" validate:"omitempty,gte=130,lte=170"`
	GREQuantitative *int     `json:"gre_quantitative,omitempty" yaml:"gre_quantitative,omitempty" validate:"omitempty,gte=130,lte=170"`
	GREWriting      *float64 `json:"gre_writing,omitempty" yaml:"gre_writing,omitempty" validate:"omitempty,gte=0,lte=6"`
	GMATTotal       *int     `json:"gmat_total,omitempty" yaml:"gmat_total,omitempty" validate:"omitempty,gte=200,lte=805"`

	TargetCountries  []string `json:"target_countries" yaml:"target_countries" validate:"required,min=1,dive,required"`
	TargetMajors     []string `json:"target_majors" yaml:"target_majors" validate:"required,min=1,dive,required"`
	TargetDegreeType string   `json:"target_degree_type" yaml:"target_degree_type" validate:"required"`

	ResearchExperiences   []ResearchExperience   `json:"research_experiences,omitempty" yaml:"research_experiences,omitempty" validate:"dive"`
	InternshipExperiences []InternshipExperience `json:"internship_experiences,omitempty" yaml:"internship_experiences,omitempty" validate:"dive"`
	OtherExperiences      []OtherExperience      `json:"other_experiences,omitempty" yaml:"other_experiences,omitempty" validate:"dive"`
}

type ResearchExperience struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Role        string `json:"role,omitempty" yaml:"role,omitempty"`
	Description string `json:"description" yaml:"description" validate:"required"`
}

type InternshipExperience struct {
	Company     string `json:"company" yaml:"company" validate:"required"`
	Position    string `json:"position" yaml:"position" validate:"required"`
	Description string `json:"description" yaml:"description" validate:"required"`
}

type OtherExperience struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description" yaml:"description" validate:"required"`
}

// Validate validates the user background.
func (b *UserBackground) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("invalid user background: %w: %w", ErrNotValid, err)
	}

	scale, err := strconv.ParseFloat(b.GPAScale, 64)
	if err != nil || scale <= 0 {
		return fmt.Errorf("gpa_scale must be a positive number: %w", ErrNotValid)
	}
	if b.GPA > scale {
		return fmt.Errorf("gpa %.2f is above its scale %s: %w", b.GPA, b.GPAScale, ErrNotValid)
	}

	return nil
}

// Copy returns a deep copy so the submitted background can't be mutated afterwards.
func (b UserBackground) Copy() UserBackground {
	c := b
	c.LanguageTotalScore = copyPtr(b.LanguageTotalScore)
	c.LanguageReading = copyPtr(b.LanguageReading)
	c.LanguageListening = copyPtr(b.LanguageListening)
	c.LanguageSpeaking = copyPtr(b.LanguageSpeaking)
	c.LanguageWriting = copyPtr(b.LanguageWriting)
	c.GRETotal = copyPtr(b.GRETotal)
	c.GREVerbal = copyPtr(b.GREVerbal)
	c.GREQuantitative = copyPtr(b.GREQuantitative)
	c.GREWriting = copyPtr(b.GREWriting)
	c.GMATTotal = copyPtr(b.GMATTotal)
	c.TargetCountries = append([]string(nil), b.TargetCountries...)
	c.TargetMajors = append([]string(nil), b.TargetMajors...)
	c.ResearchExperiences = append([]ResearchExperience(nil), b.ResearchExperiences...)
	c.InternshipExperiences = append([]InternshipExperience(nil), b.InternshipExperiences...)
	c.OtherExperiences = append([]OtherExperience(nil), b.OtherExperiences...)
	return c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
