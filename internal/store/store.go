package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/zhouzirui/chat-app/backend/internal/model/chat"
	"github.com/zhouzirui/chat-app/backend/internal/model/user"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_users_username ON users (username);

CREATE TABLE IF NOT EXISTS chats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender TEXT NOT NULL,
	receiver TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_chats_sender ON chats (sender);
CREATE INDEX IF NOT EXISTS ix_chats_receiver ON chats (receiver);
`

// Store implements a SQLite store for users and chat history.
type Store struct {
	db *sql.DB
}

// Open the database at path, creating the schema if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}

	return &Store{db: db}, nil
}

// Close the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user and returns it with its assigned ID.
func (s *Store) CreateUser(ctx context.Context, username, hashedPassword string) (user.User, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, hashed_password)
		VALUES (?, ?)
	`, username, hashedPassword)
	if err != nil {
		if isConstraintViolation(err) {
			return user.User{}, ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return user.User{}, errors.Wrap(err, "reading user id")
	}

	return user.User{ID: id, Username: username, HashedPassword: hashedPassword}, nil
}

// GetUser looks a user up by username.
func (s *Store) GetUser(ctx context.Context, username string) (user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, hashed_password
		FROM users
		WHERE username = ?
	`, username).Scan(&u.ID, &u.Username, &u.HashedPassword)

	if err == sql.ErrNoRows {
		return user.User{}, ErrUserNotFound
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "querying user")
	}
	return u, nil
}

// SaveChat appends a record and returns it with its assigned ID.
func (s *Store) SaveChat(ctx context.Context, record chat.Record) (chat.Record, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (sender, receiver, message, timestamp)
		VALUES (?, ?, ?, ?)
	`, record.Sender, record.Receiver, record.Message, record.Timestamp)
	if err != nil {
		return chat.Record{}, errors.Wrap(err, "inserting chat")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return chat.Record{}, errors.Wrap(err, "reading chat id")
	}
	record.ID = id
	return record, nil
}

// ListChats returns every record the user sent or received, oldest first.
func (s *Store) ListChats(ctx context.Context, username string) ([]chat.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, receiver, message, timestamp
		FROM chats
		WHERE sender = ? OR receiver = ?
		ORDER BY id ASC
	`, username, username)
	if err != nil {
		return nil, errors.Wrap(err, "querying chats")
	}
	defer rows.Close()

	records := make([]chat.Record, 0, 16)
	for rows.Next() {
		var r chat.Record
		if err := rows.Scan(&r.ID, &r.Sender, &r.Receiver, &r.Message, &r.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scanning chat")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating chats")
	}
	return records, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
