package llm

// analysisOutputSchema is the strict structured-output contract. The
// provider rejects any response that does not conform; the orchestrator
// still re-checks semantic completeness before persisting.
func analysisOutputSchema() jsonSchema {
	return jsonSchema{
		Name:   "analysis_output",
		Strict: true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"salaryRange": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"min": map[string]any{"type": "number", "description": "연봉 최솟값 (만원, 세전)"},
						"mid": map[string]any{"type": "number", "description": "연봉 중간값 (만원, 세전)"},
						"max": map[string]any{"type": "number", "description": "연봉 최댓값 (만원, 세전)"},
					},
					"required":             []string{"min", "mid", "max"},
					"additionalProperties": false,
				},
				"companyTypes": map[string]any{
					"type":        "array",
					"description": "기업 유형별 적합도. 반드시 startup, midsize, enterprise 3개를 모두 포함.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"type":        map[string]any{"type": "string", "enum": []string{"startup", "midsize", "enterprise"}},
							"matchLevel":  map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
							"description": map[string]any{"type": "string", "description": "해당 기업 유형과의 적합도 이유 (50자 이내)"},
						},
						"required":             []string{"type", "matchLevel", "description"},
						"additionalProperties": false,
					},
				},
				"strengths": map[string]any{
					"type":        "array",
					"description": "핵심 경력 강점 3개",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"title":       map[string]any{"type": "string", "description": "강점 제목 (20자 이내)"},
							"description": map[string]any{"type": "string", "description": "강점 설명 (100자 이내)"},
							"percentile":  map[string]any{"type": "number", "description": "동일 직군 내 상위 몇 % (0=상위 1%, 100=하위)"},
						},
						"required":             []string{"title", "description", "percentile"},
						"additionalProperties": false,
					},
				},
				"sampleSize":      map[string]any{"type": "number", "description": "분석에 사용된 가상 샘플 수 (500~5000 범위)"},
				"confidenceScore": map[string]any{"type": "number", "description": "분석 신뢰도 0.0~1.0"},
			},
			"required":             []string{"salaryRange", "companyTypes", "strengths", "sampleSize", "confidenceScore"},
			"additionalProperties": false,
		},
	}
}
