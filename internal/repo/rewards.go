package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"bountyline/internal/domain"
)

// dbtx is satisfied by *sql.DB and *sql.Tx so reads can run either inside
// or outside a command transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const rewardColumns = `id,space_id,title,status,chain_id,reward_token,reward_amount,custom_reward,
approve_submitters,allow_multiple_applications,max_submissions,due_date,submissions_locked,kyc_required,
submitter_policy_json,fields_json,page_id,proposal_id,template_id,is_template,is_milestone,
created_by,created_at,updated_at`

func (r Repo) InsertRewardTx(ctx context.Context, tx *sql.Tx, rw domain.Reward) error {
	policy, err := json.Marshal(rw.SubmitterPolicy)
	if err != nil {
		return fmt.Errorf("marshal submitter policy: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO rewards(`+rewardColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rw.ID, rw.SpaceID, nullable(rw.Title), rw.Status,
		nullableInt64Ptr(rw.ChainID), nullableStringPtr(rw.RewardToken), nullableFloatPtr(rw.RewardAmount), nullableStringPtr(rw.CustomReward),
		boolInt(rw.ApproveSubmitters), boolInt(rw.AllowMultipleApplications), nullableIntPtr(rw.MaxSubmissions), nullableStringPtr(rw.DueDate),
		boolInt(rw.SubmissionsLocked), boolInt(rw.KYCRequired),
		string(policy), nullableStringPtr(rw.FieldsJSON), nullableStringPtr(rw.PageID), nullableStringPtr(rw.ProposalID), nullableStringPtr(rw.TemplateID),
		boolInt(rw.IsTemplate), boolInt(rw.IsMilestone),
		rw.CreatedBy, rw.CreatedAt, rw.UpdatedAt)
	if err != nil {
		return err
	}
	return r.replaceReviewers(ctx, tx, rw.ID, rw.Reviewers)
}

func (r Repo) UpdateRewardTx(ctx context.Context, tx *sql.Tx, rw domain.Reward) error {
	policy, err := json.Marshal(rw.SubmitterPolicy)
	if err != nil {
		return fmt.Errorf("marshal submitter policy: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE rewards SET title=?, status=?, chain_id=?, reward_token=?, reward_amount=?, custom_reward=?,
approve_submitters=?, allow_multiple_applications=?, max_submissions=?, due_date=?, submissions_locked=?, kyc_required=?,
submitter_policy_json=?, fields_json=?, page_id=?, proposal_id=?, template_id=?, is_template=?, is_milestone=?, updated_at=?
WHERE id=?`,
		nullable(rw.Title), rw.Status,
		nullableInt64Ptr(rw.ChainID), nullableStringPtr(rw.RewardToken), nullableFloatPtr(rw.RewardAmount), nullableStringPtr(rw.CustomReward),
		boolInt(rw.ApproveSubmitters), boolInt(rw.AllowMultipleApplications), nullableIntPtr(rw.MaxSubmissions), nullableStringPtr(rw.DueDate),
		boolInt(rw.SubmissionsLocked), boolInt(rw.KYCRequired),
		string(policy), nullableStringPtr(rw.FieldsJSON), nullableStringPtr(rw.PageID), nullableStringPtr(rw.ProposalID), nullableStringPtr(rw.TemplateID),
		boolInt(rw.IsTemplate), boolInt(rw.IsMilestone), rw.UpdatedAt, rw.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRewardStatusTx writes only the status column. The rollup is the
// sole caller outside the terminal commands.
func (r Repo) UpdateRewardStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE rewards SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetReward(ctx context.Context, id string) (domain.Reward, error) {
	return r.getReward(ctx, r.DB, id)
}

func (r Repo) GetRewardTx(ctx context.Context, tx *sql.Tx, id string) (domain.Reward, error) {
	return r.getReward(ctx, tx, id)
}

func (r Repo) getReward(ctx context.Context, q dbtx, id string) (domain.Reward, error) {
	row := q.QueryRowContext(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id=?`, id)
	rw, err := scanReward(row.Scan)
	if err == sql.ErrNoRows {
		return rw, ErrNotFound
	}
	if err != nil {
		return rw, err
	}
	rw.Reviewers, err = r.listReviewers(ctx, q, rw.ID)
	return rw, err
}

type RewardFilters struct {
	SpaceID         string
	Status          string
	CreatedBy       string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListRewards(ctx context.Context, f RewardFilters) ([]domain.Reward, error) {
	var clauses []string
	var args []any
	if f.SpaceID != "" {
		clauses = append(clauses, "space_id=?")
		args = append(args, f.SpaceID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CreatedBy != "" {
		clauses = append(clauses, "created_by=?")
		args = append(args, f.CreatedBy)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + rewardColumns + ` FROM rewards ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Reward
	for rows.Next() {
		rw, err := scanReward(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Reviewers, err = r.listReviewers(ctx, r.DB, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func scanReward(scan func(dest ...any) error) (domain.Reward, error) {
	var rw domain.Reward
	var title, rewardToken, customReward, dueDate, policyJSON, fieldsJSON, pageID, proposalID, templateID sql.NullString
	var chainID sql.NullInt64
	var rewardAmount sql.NullFloat64
	var maxSubmissions sql.NullInt64
	var approve, multiple, locked, kyc, isTemplate, isMilestone int
	err := scan(&rw.ID, &rw.SpaceID, &title, &rw.Status,
		&chainID, &rewardToken, &rewardAmount, &customReward,
		&approve, &multiple, &maxSubmissions, &dueDate, &locked, &kyc,
		&policyJSON, &fieldsJSON, &pageID, &proposalID, &templateID, &isTemplate, &isMilestone,
		&rw.CreatedBy, &rw.CreatedAt, &rw.UpdatedAt)
	if err != nil {
		return rw, err
	}
	if title.Valid {
		rw.Title = title.String
	}
	if chainID.Valid {
		rw.ChainID = &chainID.Int64
	}
	if rewardToken.Valid {
		rw.RewardToken = &rewardToken.String
	}
	if rewardAmount.Valid {
		rw.RewardAmount = &rewardAmount.Float64
	}
	if customReward.Valid {
		rw.CustomReward = &customReward.String
	}
	rw.ApproveSubmitters = approve != 0
	rw.AllowMultipleApplications = multiple != 0
	if maxSubmissions.Valid {
		v := int(maxSubmissions.Int64)
		rw.MaxSubmissions = &v
	}
	if dueDate.Valid {
		rw.DueDate = &dueDate.String
	}
	rw.SubmissionsLocked = locked != 0
	rw.KYCRequired = kyc != 0
	if policyJSON.Valid && policyJSON.String != "" {
		if err := json.Unmarshal([]byte(policyJSON.String), &rw.SubmitterPolicy); err != nil {
			return rw, fmt.Errorf("unmarshal submitter policy for reward %s: %w", rw.ID, err)
		}
	}
	if rw.SubmitterPolicy.Kind == "" {
		rw.SubmitterPolicy = domain.OpenSubmitterPolicy()
	}
	if fieldsJSON.Valid {
		rw.FieldsJSON = &fieldsJSON.String
	}
	if pageID.Valid {
		rw.PageID = &pageID.String
	}
	if proposalID.Valid {
		rw.ProposalID = &proposalID.String
	}
	if templateID.Valid {
		rw.TemplateID = &templateID.String
	}
	rw.IsTemplate = isTemplate != 0
	rw.IsMilestone = isMilestone != 0
	return rw, nil
}

func (r Repo) ReplaceReviewersTx(ctx context.Context, tx *sql.Tx, rewardID string, reviewers []domain.ReviewerTarget) error {
	return r.replaceReviewers(ctx, tx, rewardID, reviewers)
}

func (r Repo) replaceReviewers(ctx context.Context, tx *sql.Tx, rewardID string, reviewers []domain.ReviewerTarget) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM reward_reviewers WHERE reward_id=?`, rewardID); err != nil {
		return err
	}
	for _, t := range reviewers {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO reward_reviewers(reward_id,target_group,target_id) VALUES (?,?,?)`,
			rewardID, t.Group, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) listReviewers(ctx context.Context, q dbtx, rewardID string) ([]domain.ReviewerTarget, error) {
	rows, err := q.QueryContext(ctx, `SELECT target_group,target_id FROM reward_reviewers WHERE reward_id=? ORDER BY target_group, target_id`, rewardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ReviewerTarget
	for rows.Next() {
		var t domain.ReviewerTarget
		if err := rows.Scan(&t.Group, &t.ID); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
