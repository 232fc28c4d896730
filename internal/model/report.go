package model

// AnalysisReport is the terminal result of a completed analysis task.
type AnalysisReport struct {
	Competitiveness       CompetitivenessAnalysis `json:"competitiveness"`
	SchoolRecommendations SchoolRecommendations   `json:"school_recommendations"`
	SimilarCases          []CaseAnalysis          `json:"similar_cases"`
	BackgroundImprovement *BackgroundImprovement  `json:"background_improvement"`
	// RadarScores are the academic, language, research, internship and school scores.
	RadarScores     []float64         `json:"radar_scores"`
	Degraded        bool              `json:"degraded,omitempty"`
	PartialFailures map[string]string `json:"partial_failures,omitempty"`
}

type CompetitivenessAnalysis struct {
	Strengths  string `json:"strengths"`
	Weaknesses string `json:"weaknesses"`
	Summary    string `json:"summary"`
}

type SchoolRecommendations struct {
	Recommendations []SchoolRecommendation `json:"recommendations"`
	AnalysisSummary string                 `json:"analysis_summary"`
}

type SchoolRecommendation struct {
	University      string           `json:"university"`
	Program         string           `json:"program"`
	Reason          string           `json:"reason"`
	SupportingCases []SupportingCase `json:"supporting_cases"`
}

type SupportingCase struct {
	CaseID          string  `json:"case_id"`
	SimilarityScore float64 `json:"similarity_score"`
	KeySimilarities string  `json:"key_similarities"`
}

type CaseAnalysis struct {
	CaseID             int            `json:"case_id"`
	AdmittedUniversity string         `json:"admitted_university"`
	AdmittedProgram    string         `json:"admitted_program"`
	GPA                string         `json:"gpa"`
	LanguageScore      string         `json:"language_score"`
	LanguageTestType   string         `json:"language_test_type,omitempty"`
	KeyExperiences     string         `json:"key_experiences,omitempty"`
	UndergraduateInfo  string         `json:"undergraduate_info"`
	Comparison         CaseComparison `json:"comparison"`
	SuccessFactors     string         `json:"success_factors"`
	Takeaways          string         `json:"takeaways"`
}

type CaseComparison struct {
	GPA        string `json:"gpa"`
	University string `json:"university"`
	Experience string `json:"experience"`
}

type BackgroundImprovement struct {
	ActionPlan      []ActionPlan `json:"action_plan"`
	StrategySummary string       `json:"strategy_summary"`
}

type ActionPlan struct {
	Timeframe string `json:"timeframe"`
	Action    string `json:"action"`
	Goal      string `json:"goal"`
}
