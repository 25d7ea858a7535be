package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"reading-quiz-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID           string               `bun:"id,pk"`
	Username     string               `bun:"username,notnull,unique"`
	PasswordHash string               `bun:"password_hash,notnull"`
	Role         string               `bun:"role,notnull"`
	Score        *domain.FinalResults `bun:"score,type:jsonb"`
	Status       string               `bun:"status,notnull"`
}

func rowFromUser(u domain.User) *userRow {
	return &userRow{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Score:        u.Score,
		Status:       string(u.Status),
	}
}

func (r *userRow) user() domain.User {
	return domain.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		Score:        r.Score,
		Status:       domain.Status(r.Status),
	}
}

// UserStore implements app.UserRepository on the users table.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

// OpenDB opens a bun handle on the pgdriver connector.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (s *UserStore) Create(ctx context.Context, user domain.User) error {
	if _, err := s.db.NewInsert().Model(rowFromUser(user)).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	return s.getBy(ctx, "id", id)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.getBy(ctx, "username", username)
}

func (s *UserStore) getBy(ctx context.Context, column, value string) (domain.User, error) {
	row := new(userRow)
	err := s.db.NewSelect().Model(row).Where("? = ?", bun.Ident(column), value).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}
	return row.user(), nil
}

func (s *UserStore) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Where("role = ?", string(role)).Order("username ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].user())
	}
	return users, nil
}

func (s *UserStore) UpdateScore(ctx context.Context, id string, results domain.FinalResults) error {
	row := &userRow{ID: id, Score: &results, Status: string(domain.StatusCompleted)}
	res, err := s.db.NewUpdate().Model(row).Column("score", "status").WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return expectRow(res)
}

func (s *UserStore) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	row := &userRow{ID: id, Status: string(status)}
	res, err := s.db.NewUpdate().Model(row).Column("status").WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
