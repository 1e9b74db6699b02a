package domain

type Profile struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Email                 string  `json:"email"`
	SubscriptionStatus    string  `json:"subscription_status" enum:"free,premium,cancelled"`
	SubscriptionStartedAt *string `json:"subscription_started_at,omitempty" format:"date-time"`
	SubscriptionExpiresAt *string `json:"subscription_expires_at,omitempty" format:"date-time"`
	CreatedAt             string  `json:"created_at" format:"date-time"`
	UpdatedAt             string  `json:"updated_at" format:"date-time"`
}

// AnalysisInput is a validated, normalized analysis payload.
type AnalysisInput struct {
	JobTitle          string   `json:"jobTitle"`
	YearsOfExperience int      `json:"yearsOfExperience"`
	Skills            []string `json:"skills"`
	Achievements      string   `json:"achievements,omitempty"`
	Education         string   `json:"education"`
}

type AnalysisRequest struct {
	ID                string   `json:"id"`
	OwnerID           string   `json:"owner_id"`
	JobTitle          string   `json:"job_title"`
	YearsOfExperience int      `json:"years_of_experience"`
	Skills            []string `json:"skills"`
	Achievements      string   `json:"achievements,omitempty"`
	Education         string   `json:"education"`
	Status            string   `json:"status" enum:"pending,processing,completed,failed"`
	CreatedAt         string   `json:"created_at" format:"date-time"`
}

type SalaryRange struct {
	Min int `json:"min"`
	Mid int `json:"mid"`
	Max int `json:"max"`
}

type CompanyTypeMatch struct {
	Type        string `json:"type" enum:"startup,midsize,enterprise"`
	MatchLevel  string `json:"matchLevel" enum:"high,medium,low"`
	Description string `json:"description"`
}

// Strength is one narrative career strength. Percentile 0 means top of
// the cohort, 100 the bottom.
type Strength struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Percentile  float64 `json:"percentile"`
}

type AnalysisResult struct {
	ID              string             `json:"id"`
	RequestID       string             `json:"request_id"`
	OwnerID         string             `json:"owner_id"`
	Salary          SalaryRange        `json:"salary_range"`
	CompanyTypes    []CompanyTypeMatch `json:"company_types"`
	Strengths       []Strength         `json:"strengths"`
	SampleSize      int                `json:"sample_size"`
	ConfidenceScore float64            `json:"confidence_score"`
	RawResponse     string             `json:"raw_response,omitempty"`
	CreatedAt       string             `json:"created_at" format:"date-time"`
}

// Request lifecycle statuses. Completed and failed are terminal.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	SubscriptionFree      = "free"
	SubscriptionPremium   = "premium"
	SubscriptionCancelled = "cancelled"
)

const (
	CompanyStartup    = "startup"
	CompanyMidsize    = "midsize"
	CompanyEnterprise = "enterprise"
)

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	OwnerID    string `json:"owner_id"`
	Payload    string `json:"payload_json"`
}
