package io

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/jobwatch/internal/model"
)

const validYAML = `undergraduate_university: Tsinghua University
undergraduate_major: Computer Science
gpa: 3.7
gpa_scale: "4.0"
graduation_year: 2025
language_test_type: TOEFL
language_total_score: 105
gre_total: 325
target_countries: [US, UK]
target_majors: [Computer Science]
target_degree_type: Master
research_experiences:
  - name: Graph learning
    role: Research assistant
    description: Built a GNN benchmark.
`

const validJSON = `{
  "undergraduate_university": "Fudan University",
  "undergraduate_major": "Finance",
  "gpa": 88,
  "gpa_scale": "100",
  "graduation_year": 2024,
  "target_countries": ["HK"],
  "target_majors": ["Finance"],
  "target_degree_type": "Master"
}`

func TestBackgroundRepository_GetBackground(t *testing.T) {
	tests := map[string]struct {
		fs       fstest.MapFS
		path     string
		check    func(t *testing.T, bg model.UserBackground)
		expErr   bool
		expErrIs error
	}{
		"A valid YAML background should load successfully": {
			fs:   fstest.MapFS{"bg.yaml": &fstest.MapFile{Data: []byte(validYAML)}},
			path: "bg.yaml",
			check: func(t *testing.T, bg model.UserBackground) {
				assert.Equal(t, "Tsinghua University", bg.UndergraduateUniversity)
				assert.Equal(t, 3.7, bg.GPA)
				assert.Equal(t, []string{"US", "UK"}, bg.TargetCountries)
				require.NotNil(t, bg.GRETotal)
				assert.Equal(t, 325, *bg.GRETotal)
				require.Len(t, bg.ResearchExperiences, 1)
				assert.Equal(t, "Research assistant", bg.ResearchExperiences[0].Role)
			},
		},
		"A valid JSON background should load successfully": {
			fs:   fstest.MapFS{"bg.json": &fstest.MapFile{Data: []byte(validJSON)}},
			path: "bg.json",
			check: func(t *testing.T, bg model.UserBackground) {
				assert.Equal(t, "Fudan University", bg.UndergraduateUniversity)
				assert.Equal(t, 88.0, bg.GPA)
				assert.Nil(t, bg.GRETotal)
			},
		},
		"A missing file should fail": {
			fs:       fstest.MapFS{},
			path:     "missing.yaml",
			expErr:   true,
			expErrIs: fs.ErrNotExist,
		},
		"An empty YAML file should fail": {
			fs:       fstest.MapFS{"bg.yaml": &fstest.MapFile{Data: []byte("")}},
			path:     "bg.yaml",
			expErr:   true,
			expErrIs: model.ErrNotValid,
		},
		"Unknown fields should fail": {
			fs:     fstest.MapFS{"bg.yaml": &fstest.MapFile{Data: []byte(validYAML + "favourite_color: blue\n")}},
			path:   "bg.yaml",
			expErr: true,
		},
		"An invalid background should fail validation": {
			fs:       fstest.MapFS{"bg.yaml": &fstest.MapFile{Data: []byte(strings.Replace(validYAML, "gpa: 3.7", "gpa: 4.7", 1))}},
			path:     "bg.yaml",
			expErr:   true,
			expErrIs: model.ErrNotValid,
		},
		"Malformed JSON should fail": {
			fs:     fstest.MapFS{"bg.json": &fstest.MapFile{Data: []byte(`{"gpa": `)}},
			path:   "bg.json",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := NewBackgroundRepository(test.fs)

			bg, err := repo.GetBackground(context.Background(), test.path)

			if test.expErr {
				require.Error(t, err)
				if test.expErrIs != nil {
					assert.True(t, errors.Is(err, test.expErrIs), "expected %v, got %v", test.expErrIs, err)
				}
				return
			}
			require.NoError(t, err)
			test.check(t, bg)
		})
	}
}

func TestDecodeBackgroundUnknownFormat(t *testing.T) {
	_, err := DecodeBackground(strings.NewReader(validYAML), "toml")
	assert.True(t, errors.Is(err, model.ErrNotValid))
}
