package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"talentworth/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrTerminalStatus is returned when a status update would mutate a
// request that already reached completed or failed.
var ErrTerminalStatus = errors.New("request already in terminal status")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableDeref(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

// Profiles

func (r Repo) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	var p domain.Profile
	var started, expires sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,name,email,subscription_status,subscription_started_at,subscription_expires_at,created_at,updated_at
		 FROM profiles WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.SubscriptionStatus, &started, &expires, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if started.Valid {
		p.SubscriptionStartedAt = &started.String
	}
	if expires.Valid {
		p.SubscriptionExpiresAt = &expires.String
	}
	return p, nil
}

func (r Repo) UpsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO profiles(id,name,email,subscription_status,subscription_started_at,subscription_expires_at,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name,
		   email=excluded.email,
		   subscription_status=excluded.subscription_status,
		   subscription_started_at=excluded.subscription_started_at,
		   subscription_expires_at=excluded.subscription_expires_at,
		   updated_at=excluded.updated_at`,
		p.ID, p.Name, p.Email, p.SubscriptionStatus,
		nullableDeref(p.SubscriptionStartedAt), nullableDeref(p.SubscriptionExpiresAt),
		p.CreatedAt, p.UpdatedAt)
	return err
}

// Analysis requests

func (r Repo) InsertAnalysisRequest(ctx context.Context, req domain.AnalysisRequest) error {
	skills, err := json.Marshal(req.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO analysis_requests(id,owner_id,job_title,years_of_experience,skills_json,achievements,education,status,created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		req.ID, req.OwnerID, req.JobTitle, req.YearsOfExperience, string(skills),
		nullable(req.Achievements), req.Education, req.Status, req.CreatedAt)
	return err
}

func scanRequest(scan func(dest ...any) error) (domain.AnalysisRequest, error) {
	var req domain.AnalysisRequest
	var skillsJSON string
	var achievements sql.NullString
	err := scan(&req.ID, &req.OwnerID, &req.JobTitle, &req.YearsOfExperience,
		&skillsJSON, &achievements, &req.Education, &req.Status, &req.CreatedAt)
	if err == sql.ErrNoRows {
		return req, ErrNotFound
	}
	if err != nil {
		return req, err
	}
	if achievements.Valid {
		req.Achievements = achievements.String
	}
	if err := json.Unmarshal([]byte(skillsJSON), &req.Skills); err != nil {
		return req, fmt.Errorf("unmarshal skills: %w", err)
	}
	return req, nil
}

const requestColumns = `id,owner_id,job_title,years_of_experience,skills_json,achievements,education,status,created_at`

func (r Repo) GetAnalysisRequest(ctx context.Context, id string) (domain.AnalysisRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM analysis_requests WHERE id=?`, id)
	return scanRequest(row.Scan)
}

func (r Repo) ListAnalysisRequests(ctx context.Context, ownerID string, limit int) ([]domain.AnalysisRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM analysis_requests WHERE owner_id=? ORDER BY created_at DESC LIMIT ?`,
		ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AnalysisRequest
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

// UpdateAnalysisRequestStatus moves a request to status. Terminal rows
// are never mutated; attempting to do so returns ErrTerminalStatus.
func (r Repo) UpdateAnalysisRequestStatus(ctx context.Context, id, status string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE analysis_requests SET status=? WHERE id=? AND status NOT IN ('completed','failed')`,
		status, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var current string
		err := r.DB.QueryRowContext(ctx, `SELECT status FROM analysis_requests WHERE id=?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrTerminalStatus
	}
	return nil
}

// Analysis results

func (r Repo) InsertAnalysisResult(ctx context.Context, res domain.AnalysisResult) error {
	companyTypes, err := json.Marshal(res.CompanyTypes)
	if err != nil {
		return fmt.Errorf("marshal company types: %w", err)
	}
	strengths, err := json.Marshal(res.Strengths)
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO analysis_results(id,request_id,owner_id,salary_min,salary_mid,salary_max,company_types_json,strengths_json,sample_size,confidence_score,raw_response,created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		res.ID, res.RequestID, res.OwnerID,
		res.Salary.Min, res.Salary.Mid, res.Salary.Max,
		string(companyTypes), string(strengths),
		res.SampleSize, res.ConfidenceScore, nullable(res.RawResponse), res.CreatedAt)
	return err
}

func (r Repo) GetAnalysisResultByRequest(ctx context.Context, requestID string) (domain.AnalysisResult, error) {
	var res domain.AnalysisResult
	var companyTypesJSON, strengthsJSON string
	var raw sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,request_id,owner_id,salary_min,salary_mid,salary_max,company_types_json,strengths_json,sample_size,confidence_score,raw_response,created_at
		 FROM analysis_results WHERE request_id=?`, requestID).
		Scan(&res.ID, &res.RequestID, &res.OwnerID,
			&res.Salary.Min, &res.Salary.Mid, &res.Salary.Max,
			&companyTypesJSON, &strengthsJSON,
			&res.SampleSize, &res.ConfidenceScore, &raw, &res.CreatedAt)
	if err == sql.ErrNoRows {
		return res, ErrNotFound
	}
	if err != nil {
		return res, err
	}
	if raw.Valid {
		res.RawResponse = raw.String
	}
	if err := json.Unmarshal([]byte(companyTypesJSON), &res.CompanyTypes); err != nil {
		return res, fmt.Errorf("unmarshal company types: %w", err)
	}
	if err := json.Unmarshal([]byte(strengthsJSON), &res.Strengths); err != nil {
		return res, fmt.Errorf("unmarshal strengths: %w", err)
	}
	return res, nil
}

// Events

func (r Repo) LatestEvents(ctx context.Context, n int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if n <= 0 {
		n = 20
	}
	query := `SELECT id,ts,type,entity_kind,entity_id,owner_id,payload_json FROM events WHERE 1=1`
	args := []any{}
	if evtType != "" {
		query += " AND type=?"
		args = append(args, evtType)
	}
	if entityKind != "" {
		query += " AND entity_kind=?"
		args = append(args, entityKind)
	}
	if entityID != "" {
		query += " AND entity_id=?"
		args = append(args, entityID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, n)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var entity sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entity, &e.OwnerID, &e.Payload); err != nil {
			return nil, err
		}
		if entity.Valid {
			e.EntityID = entity.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
