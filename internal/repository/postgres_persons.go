package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/domain"
	"github.com/titan/hive-person-service/internal/idgen"
)

// PostgresPersonsRepository 人员Repository实现
type PostgresPersonsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresPersonsRepository 创建人员Repository
func NewPostgresPersonsRepository(db *sql.DB, logger *zap.Logger) *PostgresPersonsRepository {
	return &PostgresPersonsRepository{db: db, logger: logger}
}

// 确保实现了接口
var _ PersonsRepository = (*PostgresPersonsRepository)(nil)

const personColumns = `id, identity_no, name, phone, email, address,
	identity_frontal_view, identity_rear_view, license_frontal_view, verified, deleted`

// scanPerson 扫描单行人员记录，可空列转为指针
func scanPerson(row interface{ Scan(...any) error }) (*domain.Person, error) {
	var p domain.Person
	var phone, email, address, idFront, idRear, licFront sql.NullString
	err := row.Scan(
		&p.ID,
		&p.IdentityNo,
		&p.Name,
		&phone,
		&email,
		&address,
		&idFront,
		&idRear,
		&licFront,
		&p.Verified,
		&p.Deleted,
	)
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		p.Phone = &phone.String
	}
	if email.Valid {
		p.Email = &email.String
	}
	if address.Valid {
		p.Address = &address.String
	}
	if idFront.Valid {
		p.IdentityFrontalView = &idFront.String
	}
	if idRear.Valid {
		p.IdentityRearView = &idRear.String
	}
	if licFront.Valid {
		p.LicenseFrontalView = &licFront.String
	}
	return &p, nil
}

// GetActivePerson 按 id 获取未删除的人员记录
func (r *PostgresPersonsRepository) GetActivePerson(ctx context.Context, pid string) (*domain.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1 AND NOT deleted`

	p, err := scanPerson(r.db.QueryRowContext(ctx, query, pid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

// ListActivePersons 获取全部未删除的人员记录（全量缓存重建用）
func (r *PostgresPersonsRepository) ListActivePersons(ctx context.Context) ([]*domain.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE NOT deleted ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	var persons []*domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate persons: %w", err)
	}
	return persons, nil
}

// ReconcileBatch 单事务内逐条 create-or-merge
// 去重判定依据 identity_no 在未删除记录中的存在性：
//   - 不存在：生成新 id 插入（phone 缺省写空串）
//   - 存在且未认证：更新 name/phone（phone 缺省保留现值）
//   - 存在且已认证：不做任何修改，原记录原样返回，不进入刷新列表
//
// 存在性检查与插入之间没有应用层互斥，并发创建同一 identity_no
// 由数据库唯一索引仲裁，失败方收到 domain.ErrConflict，整批回滚
func (r *PostgresPersonsRepository) ReconcileBatch(ctx context.Context, inputs []domain.PersonInput) ([]domain.PersonSummary, []string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	summaries := make([]domain.PersonSummary, 0, len(inputs))
	var refreshIDs []string

	for _, in := range inputs {
		var (
			pid      string
			name     string
			phone    sql.NullString
			verified bool
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, name, phone, verified FROM persons
			 WHERE identity_no = $1 AND NOT deleted
			 FOR UPDATE`,
			in.IdentityNo,
		).Scan(&pid, &name, &phone, &verified)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			// 新建
			pid = idgen.New()
			insertPhone := ""
			if in.Phone != nil {
				insertPhone = *in.Phone
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO persons (id, identity_no, name, phone) VALUES ($1, $2, $3, $4)`,
				pid, in.IdentityNo, in.Name, insertPhone,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return nil, nil, fmt.Errorf("insert person %s: %w", in.IdentityNo, domain.ErrConflict)
				}
				return nil, nil, fmt.Errorf("failed to insert person: %w", err)
			}
			summaries = append(summaries, domain.PersonSummary{ID: pid, Name: in.Name, IdentityNo: in.IdentityNo})
			refreshIDs = append(refreshIDs, pid)

		case err != nil:
			return nil, nil, fmt.Errorf("failed to look up person by identity_no: %w", err)

		case verified:
			// 已认证：name/phone 锁定，批量提交不得覆盖
			summaries = append(summaries, domain.PersonSummary{ID: pid, Name: name, IdentityNo: in.IdentityNo})

		default:
			// 未认证：合并 name/phone，id 与 identity_no 不变
			_, err = tx.ExecContext(ctx,
				`UPDATE persons SET name = $1, phone = COALESCE($2, phone) WHERE id = $3`,
				in.Name, in.Phone, pid,
			)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to merge person: %w", err)
			}
			summaries = append(summaries, domain.PersonSummary{ID: pid, Name: in.Name, IdentityNo: in.IdentityNo})
			refreshIDs = append(refreshIDs, pid)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit reconcile batch: %w", err)
	}

	r.logger.Info("Reconciled person batch",
		zap.Int("inputs", len(inputs)),
		zap.Int("refresh_ids", len(refreshIDs)),
	)
	return summaries, refreshIDs, nil
}

// UpdateViews 单条证件照更新（独立事务）
func (r *PostgresPersonsRepository) UpdateViews(ctx context.Context, upd domain.ViewUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var pid string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM persons WHERE id = $1 AND NOT deleted FOR UPDATE`,
		upd.PID,
	).Scan(&pid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to check person existence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE persons SET
			identity_frontal_view = COALESCE($1, identity_frontal_view),
			identity_rear_view    = COALESCE($2, identity_rear_view),
			license_frontal_view  = COALESCE($3, license_frontal_view)
		 WHERE id = $4`,
		upd.IdentityFrontalView, upd.IdentityRearView, upd.LicenseFrontalView, pid,
	)
	if err != nil {
		return fmt.Errorf("failed to update views: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit view update: %w", err)
	}
	return nil
}

// SetVerified 按 identity_no 设置认证标志
func (r *PostgresPersonsRepository) SetVerified(ctx context.Context, identityNo string, flag bool) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var pid string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM persons WHERE identity_no = $1 AND NOT deleted FOR UPDATE`,
		identityNo,
	).Scan(&pid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to check person existence: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE persons SET verified = $1 WHERE id = $2`, flag, pid)
	if err != nil {
		return "", fmt.Errorf("failed to set verified flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit verified update: %w", err)
	}
	return pid, nil
}

// isUniqueViolation 判断是否为唯一约束冲突（PostgreSQL 23505）
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == "23505"
	}
	return false
}
