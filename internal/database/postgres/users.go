package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-inbox/internal/database"
	"github.com/pgvector/pgvector-go"
)

// UserRepository provides PostgreSQL-backed user storage.
// Face encodings live in user_faces as pgvector columns.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const selectUsers = `
	SELECT u.id, u.created_at, u.gmail_email, u.gmail_token, u.gmail_linked_at,
	       f.embedding
	FROM users u
	LEFT JOIN user_faces f ON f.user_id = u.id
`

// ListWithEncodings returns users having at least one face encoding in creation order.
func (r *UserRepository) ListWithEncodings(ctx context.Context) ([]database.User, error) {
	query := selectUsers + `
		WHERE EXISTS (SELECT 1 FROM user_faces e WHERE e.user_id = u.id)
		ORDER BY u.seq, f.face_index
	`
	return r.queryUsers(ctx, query)
}

// List returns all users in creation order.
func (r *UserRepository) List(ctx context.Context) ([]database.User, error) {
	return r.queryUsers(ctx, selectUsers+" ORDER BY u.seq, f.face_index")
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*database.User, error) {
	if !validID(id) {
		return nil, database.ErrUserNotFound
	}

	users, err := r.queryUsers(ctx, selectUsers+" WHERE u.id = $1 ORDER BY f.face_index", id)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, database.ErrUserNotFound
	}
	return &users[0], nil
}

// Count returns the number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// Create inserts a user together with its first face encoding.
func (r *UserRepository) Create(ctx context.Context, encoding []float32, createdAt time.Time) (*database.User, error) {
	id := uuid.New().String()

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO users (id, created_at) VALUES ($1, $2)", id, createdAt,
	); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_faces (user_id, face_index, embedding) VALUES ($1, 0, $2)",
		id, pgvector.NewVector(encoding),
	); err != nil {
		return nil, fmt.Errorf("insert face encoding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit user: %w", err)
	}

	return &database.User{
		ID:            id,
		FaceEncodings: [][]float32{append([]float32(nil), encoding...)},
		CreatedAt:     createdAt,
	}, nil
}

// SetMailLink stores the Gmail linkage on the user row.
func (r *UserRepository) SetMailLink(ctx context.Context, id string, link database.MailLink) error {
	if !validID(id) {
		return database.ErrUserNotFound
	}
	token, err := json.Marshal(link.Token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	res, err := r.pool.Exec(ctx, `
		UPDATE users SET gmail_email = $2, gmail_token = $3, gmail_linked_at = $4
		WHERE id = $1
	`, id, link.Email, token, link.LinkedAt)
	if err != nil {
		return fmt.Errorf("set mail link: %w", err)
	}
	return expectOneRow(res)
}

// UpdateToken replaces the stored token of a linked user.
func (r *UserRepository) UpdateToken(ctx context.Context, id string, token database.Token) error {
	if !validID(id) {
		return database.ErrUserNotFound
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	res, err := r.pool.Exec(ctx,
		"UPDATE users SET gmail_token = $2 WHERE id = $1 AND gmail_token IS NOT NULL", id, data)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	return expectOneRow(res)
}

// ClearMailLink removes the Gmail linkage from the user row.
func (r *UserRepository) ClearMailLink(ctx context.Context, id string) error {
	if !validID(id) {
		return database.ErrUserNotFound
	}
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET gmail_email = NULL, gmail_token = NULL, gmail_linked_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("clear mail link: %w", err)
	}
	return expectOneRow(res)
}

// Delete removes the user; face rows cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return database.ErrUserNotFound
	}
	res, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOneRow(res)
}

// queryUsers scans joined user/face rows, folding consecutive rows of the same user.
func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]database.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []database.User
	for rows.Next() {
		var (
			id       string
			created  time.Time
			email    sql.NullString
			token    []byte
			linkedAt sql.NullTime
			vec      nullVector
		)
		if err := rows.Scan(&id, &created, &email, &token, &linkedAt, &vec); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}

		if n := len(users); n == 0 || users[n-1].ID != id {
			u := database.User{ID: id, CreatedAt: created}
			if email.Valid && token != nil {
				link := &database.MailLink{Email: email.String, LinkedAt: linkedAt.Time}
				if err := json.Unmarshal(token, &link.Token); err != nil {
					return nil, fmt.Errorf("decode token for user %s: %w", id, err)
				}
				u.Mail = link
			}
			users = append(users, u)
		}
		if vec.Valid {
			last := &users[len(users)-1]
			last.FaceEncodings = append(last.FaceEncodings, vec.Vector.Slice())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// nullVector scans a vector column that may be NULL from a LEFT JOIN.
type nullVector struct {
	Vector pgvector.Vector
	Valid  bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.Valid = false
		return nil
	}
	n.Valid = true
	return n.Vector.Scan(src)
}

// validID rejects ids that would make the uuid column cast fail.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrUserNotFound
	}
	return nil
}

var _ database.UserWriter = (*UserRepository)(nil)
