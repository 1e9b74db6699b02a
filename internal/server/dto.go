package server

import (
	"talentworth/internal/domain"
	"talentworth/internal/validate"
)

// Request payloads

type AnalyzeRequest struct {
	JobTitle          string   `json:"jobTitle"`
	YearsOfExperience *int     `json:"yearsOfExperience,omitempty"`
	Skills            []string `json:"skills,omitempty"`
	Achievements      *string  `json:"achievements,omitempty"`
	Education         string   `json:"education"`
}

func (r AnalyzeRequest) raw() validate.RawInput {
	return validate.RawInput{
		JobTitle:          r.JobTitle,
		YearsOfExperience: r.YearsOfExperience,
		Skills:            r.Skills,
		Achievements:      r.Achievements,
		Education:         r.Education,
	}
}

// Response payloads

type SalaryRangeResponse struct {
	Min int `json:"min"`
	Mid int `json:"mid"`
	Max int `json:"max"`
}

type AnalyzeResponse struct {
	RequestID       string                    `json:"requestId"`
	ResultID        string                    `json:"resultId"`
	SalaryRange     SalaryRangeResponse       `json:"salaryRange"`
	CompanyTypes    []domain.CompanyTypeMatch `json:"companyTypes"`
	Strengths       []domain.Strength         `json:"strengths"`
	SampleSize      int                       `json:"sampleSize"`
	ConfidenceScore float64                   `json:"confidenceScore"`
}

func analyzeResponse(result domain.AnalysisResult) AnalyzeResponse {
	return AnalyzeResponse{
		RequestID: result.RequestID,
		ResultID:  result.ID,
		SalaryRange: SalaryRangeResponse{
			Min: result.Salary.Min,
			Mid: result.Salary.Mid,
			Max: result.Salary.Max,
		},
		CompanyTypes:    result.CompanyTypes,
		Strengths:       result.Strengths,
		SampleSize:      result.SampleSize,
		ConfidenceScore: result.ConfidenceScore,
	}
}

type AnalysisRequestResponse struct {
	ID                string   `json:"id"`
	JobTitle          string   `json:"job_title"`
	YearsOfExperience int      `json:"years_of_experience"`
	Skills            []string `json:"skills"`
	Achievements      string   `json:"achievements,omitempty"`
	Education         string   `json:"education"`
	Status            string   `json:"status" enum:"pending,processing,completed,failed"`
	CreatedAt         string   `json:"created_at" format:"date-time"`
}

func requestResponse(req domain.AnalysisRequest) AnalysisRequestResponse {
	return AnalysisRequestResponse{
		ID:                req.ID,
		JobTitle:          req.JobTitle,
		YearsOfExperience: req.YearsOfExperience,
		Skills:            req.Skills,
		Achievements:      req.Achievements,
		Education:         req.Education,
		Status:            req.Status,
		CreatedAt:         req.CreatedAt,
	}
}

type AnalysisDetailResponse struct {
	Request AnalysisRequestResponse `json:"request"`
	Result  *AnalyzeResponse        `json:"result,omitempty"`
}

type ProfileResponse struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Email                 string  `json:"email"`
	SubscriptionStatus    string  `json:"subscription_status" enum:"free,premium,cancelled"`
	SubscriptionExpiresAt *string `json:"subscription_expires_at,omitempty" format:"date-time"`
}
