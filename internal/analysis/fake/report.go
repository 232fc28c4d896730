package fake

import (
	"fmt"
	"strings"

	"github.com/slok/jobwatch/internal/model"
)

// DefaultReport returns a canned analysis report built from the background.
func DefaultReport(bg model.UserBackground) *model.AnalysisReport {
	country := first(bg.TargetCountries, "US")
	major := first(bg.TargetMajors, bg.UndergraduateMajor)
	degree := bg.TargetDegreeType
	if degree == "" {
		degree = "Master"
	}

	return &model.AnalysisReport{
		Competitiveness: model.CompetitivenessAnalysis{
			Strengths:  fmt.Sprintf("Solid academic record at %s with a GPA of %.2f/%s.", bg.UndergraduateUniversity, bg.GPA, bg.GPAScale),
			Weaknesses: "Limited research output compared with admitted applicants of similar programs.",
			Summary:    fmt.Sprintf("Competitive profile for %s programs in %s.", major, strings.Join(bg.TargetCountries, ", ")),
		},
		SchoolRecommendations: model.SchoolRecommendations{
			Recommendations: []model.SchoolRecommendation{
				{
					University: "University of Example (" + country + ")",
					Program:    fmt.Sprintf("%s in %s", degree, major),
					Reason:     "Strong match with your academic background and target major.",
					SupportingCases: []model.SupportingCase{
						{CaseID: "1", SimilarityScore: 0.87, KeySimilarities: "Same major and similar GPA."},
					},
				},
				{
					University: "Example Institute of Technology (" + country + ")",
					Program:    fmt.Sprintf("%s in %s", degree, major),
					Reason:     "Reach option with a research oriented curriculum.",
					SupportingCases: []model.SupportingCase{
						{CaseID: "2", SimilarityScore: 0.74, KeySimilarities: "Similar undergraduate tier."},
					},
				},
			},
			AnalysisSummary: "One match and one reach school based on similar admitted cases.",
		},
		SimilarCases: []model.CaseAnalysis{
			{
				CaseID:             1,
				AdmittedUniversity: "University of Example",
				AdmittedProgram:    major,
				GPA:                fmt.Sprintf("%.2f", bg.GPA),
				LanguageScore:      "105",
				LanguageTestType:   bg.LanguageTestType,
				UndergraduateInfo:  bg.UndergraduateUniversity,
				Comparison: model.CaseComparison{
					GPA:        "Similar",
					University: "Same tier",
					Experience: "Slightly stronger research",
				},
				SuccessFactors: "Focused statement of purpose and a research internship.",
				Takeaways:      "Highlight project impact in the application materials.",
			},
		},
		BackgroundImprovement: &model.BackgroundImprovement{
			ActionPlan: []model.ActionPlan{
				{Timeframe: "1-3 months", Action: "Join a research project related to " + major, Goal: "Get a recommendation letter"},
				{Timeframe: "3-6 months", Action: "Retake the language test if below the target score", Goal: "Meet every program requirement"},
			},
			StrategySummary: "Strengthen research experience before the application deadline.",
		},
		RadarScores: []float64{85, 78, 60, 70, 80},
	}
}

func first(values []string, def string) string {
	if len(values) == 0 || values[0] == "" {
		return def
	}
	return values[0]
}
