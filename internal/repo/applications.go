package repo

import (
	"context"
	"database/sql"
	"strings"

	"bountyline/internal/domain"
)

const applicationColumns = `id,reward_id,space_id,created_by,status,message,submission,submission_nodes,
wallet_address,reward_info,accepted_by,reviewed_by,created_at,updated_at`

func (r Repo) InsertApplicationTx(ctx context.Context, tx *sql.Tx, a domain.Application) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO applications(`+applicationColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.RewardID, a.SpaceID, a.CreatedBy, a.Status,
		nullable(a.Message), nullableStringPtr(a.Submission), nullableStringPtr(a.SubmissionNodes),
		nullableStringPtr(a.WalletAddress), nullableStringPtr(a.RewardInfo),
		nullableStringPtr(a.AcceptedBy), nullableStringPtr(a.ReviewedBy),
		a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) UpdateApplicationTx(ctx context.Context, tx *sql.Tx, a domain.Application) error {
	res, err := tx.ExecContext(ctx, `UPDATE applications SET status=?, message=?, submission=?, submission_nodes=?,
wallet_address=?, reward_info=?, accepted_by=?, reviewed_by=?, updated_at=? WHERE id=?`,
		a.Status, nullable(a.Message), nullableStringPtr(a.Submission), nullableStringPtr(a.SubmissionNodes),
		nullableStringPtr(a.WalletAddress), nullableStringPtr(a.RewardInfo),
		nullableStringPtr(a.AcceptedBy), nullableStringPtr(a.ReviewedBy),
		a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	return getApplication(ctx, r.DB, id)
}

func (r Repo) GetApplicationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Application, error) {
	return getApplication(ctx, tx, id)
}

func getApplication(ctx context.Context, q dbtx, id string) (domain.Application, error) {
	row := q.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id=?`, id)
	a, err := scanApplication(row.Scan)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// ListRewardApplicationsTx reads all applications of a reward inside the
// command transaction; cap checks and rollup depend on this view.
func (r Repo) ListRewardApplicationsTx(ctx context.Context, tx *sql.Tx, rewardID string) ([]domain.Application, error) {
	return listApplications(ctx, tx, ApplicationFilters{RewardID: rewardID})
}

type ApplicationFilters struct {
	RewardID  string
	SpaceID   string
	CreatedBy string
	Status    string
	Limit     int
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilters) ([]domain.Application, error) {
	return listApplications(ctx, r.DB, f)
}

func listApplications(ctx context.Context, q dbtx, f ApplicationFilters) ([]domain.Application, error) {
	var clauses []string
	var args []any
	if f.RewardID != "" {
		clauses = append(clauses, "reward_id=?")
		args = append(args, f.RewardID)
	}
	if f.SpaceID != "" {
		clauses = append(clauses, "space_id=?")
		args = append(args, f.SpaceID)
	}
	if f.CreatedBy != "" {
		clauses = append(clauses, "created_by=?")
		args = append(args, f.CreatedBy)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + applicationColumns + ` FROM applications ` + where + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func scanApplication(scan func(dest ...any) error) (domain.Application, error) {
	var a domain.Application
	var message, submission, submissionNodes, walletAddress, rewardInfo, acceptedBy, reviewedBy sql.NullString
	err := scan(&a.ID, &a.RewardID, &a.SpaceID, &a.CreatedBy, &a.Status,
		&message, &submission, &submissionNodes, &walletAddress, &rewardInfo,
		&acceptedBy, &reviewedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	if message.Valid {
		a.Message = message.String
	}
	if submission.Valid {
		a.Submission = &submission.String
	}
	if submissionNodes.Valid {
		a.SubmissionNodes = &submissionNodes.String
	}
	if walletAddress.Valid {
		a.WalletAddress = &walletAddress.String
	}
	if rewardInfo.Valid {
		a.RewardInfo = &rewardInfo.String
	}
	if acceptedBy.Valid {
		a.AcceptedBy = &acceptedBy.String
	}
	if reviewedBy.Valid {
		a.ReviewedBy = &reviewedBy.String
	}
	return a, nil
}
