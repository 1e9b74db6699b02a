package llm

import (
	"fmt"
	"strings"

	"talentworth/internal/domain"
	"talentworth/internal/jobs"
)

const systemPrompt = `당신은 한국 IT/기획/디자인/마케팅 직군의 채용 시장 데이터 분석 전문가입니다.
지원자의 직무, 경력, 기술 스택, 주요 성과, 학력을 바탕으로 현재 시장 가치를 분석합니다.

분석 원칙:
- 연봉은 만원 단위 세전 금액으로, 한국 채용 시장의 일반적인 범위 안에서 추정합니다.
- companyTypes에는 startup, midsize, enterprise 세 유형을 반드시 각각 한 번씩 포함합니다.
- strengths에는 지원자의 핵심 경력 강점을 정확히 3개 제시합니다.
- sampleSize는 500~5000 범위의 값으로, confidenceScore는 입력 정보의 구체성에 비례해 0.0~1.0으로 산정합니다.
- 입력에 포함된 정보만 근거로 삼고, 과장하거나 단정하지 않습니다.`

// buildUserPrompt renders the validated, de-identified input as the
// user message. Empty achievements are stated explicitly so the model
// does not invent any.
func buildUserPrompt(input domain.AnalysisInput) string {
	label := input.JobTitle
	if role, ok := jobs.Lookup(input.JobTitle); ok {
		label = fmt.Sprintf("%s (%s)", role.Label, role.ID)
	}
	achievements := input.Achievements
	if strings.TrimSpace(achievements) == "" {
		achievements = "no achievements provided"
	}
	return fmt.Sprintf(`다음 지원자의 시장 가치를 분석해 주세요.

직무: %s
경력: %d년
기술 스택: %s
주요 성과: %s
학력: %s`,
		label,
		input.YearsOfExperience,
		strings.Join(input.Skills, ", "),
		achievements,
		input.Education,
	)
}
