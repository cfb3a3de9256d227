package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const (
	accountColumns = "id, first_name, last_name, email, password_hash, bio, " +
		"profile_picture_url, is_verified, otp_secret, otp_created_at, created_at, updated_at"
	messageColumns = "m.id, m.content, m.created_at, m.sender_id, m.receiver_id, " +
		"m.message_type, m.file_url, u.first_name, u.profile_picture_url"
)

func (db *PgPrivChatRepository) scanAccount(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.FirstName,
		&u.LastName,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.Bio,
		&u.ProfilePictureUrl,
		&u.IsVerified,
		&u.OtpSecret,
		&u.OtpCreatedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgPrivChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	row := db.conn.QueryRow(
		"INSERT INTO users (first_name, last_name, email, password_hash) "+
			"VALUES ($1, $2, $3, $4) RETURNING "+accountColumns,
		params.FirstName,
		params.LastName,
		params.EmailAddress,
		params.PasswordHash,
	)

	return db.scanAccount(row)
}

func (db *PgPrivChatRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT "+accountColumns+" FROM users WHERE id = $1 LIMIT 1",
		accountId,
	)

	return db.scanAccount(row)
}

func (db *PgPrivChatRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT "+accountColumns+" FROM users WHERE email = $1 LIMIT 1",
		email,
	)

	return db.scanAccount(row)
}

func (db *PgPrivChatRepository) ListAccounts() ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, first_name, last_name, profile_picture_url FROM users ORDER BY first_name, last_name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.FirstName, &u.LastName, &u.ProfilePictureUrl); err != nil {
			break
		}

		users = append(users, u)
	}

	return users, err
}

// UpdateProfile applies only the fields set on params, mirroring the
// profile form where every field is optional.
func (db *PgPrivChatRepository) UpdateProfile(params UpdateProfileParams) (User, error) {
	var (
		setClauses []string
		args       []any
	)

	addField := func(column string, value *string) {
		if value != nil {
			args = append(args, *value)
			setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}

	addField("first_name", params.FirstName)
	addField("last_name", params.LastName)
	addField("bio", params.Bio)
	addField("profile_picture_url", params.ProfilePictureUrl)

	if len(setClauses) == 0 {
		return User{}, fmt.Errorf("no fields to update")
	}

	args = append(args, time.Now().UTC())
	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", len(args)))

	args = append(args, params.UserId)
	query := fmt.Sprintf(
		"UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "),
		len(args),
		accountColumns,
	)

	return db.scanAccount(db.conn.QueryRow(query, args...))
}

func (db *PgPrivChatRepository) SetAccountOTP(accountId int, secret string, createdAt time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE users SET otp_secret = $2, otp_created_at = $3, updated_at = $4 WHERE id = $1",
		accountId,
		secret,
		createdAt,
		time.Now().UTC(),
	)

	return err
}

func (db *PgPrivChatRepository) MarkAccountVerified(accountId int) error {
	_, err := db.conn.Exec(
		"UPDATE users SET is_verified = TRUE, otp_secret = NULL, otp_created_at = NULL, updated_at = $2 "+
			"WHERE id = $1",
		accountId,
		time.Now().UTC(),
	)

	return err
}

// CreateMessage inserts a message and reads back the joined canonical
// record in a single transaction, so the caller either gets the durable
// record or an error.
func (db *PgPrivChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var msgId int
	err = tx.QueryRow(
		"INSERT INTO messages (content, sender_id, receiver_id, message_type, file_url) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id",
		params.Content,
		params.SenderId,
		params.ReceiverId,
		params.MessageType,
		params.FileUrl,
	).Scan(&msgId)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	row := tx.QueryRow(
		"SELECT "+messageColumns+" FROM messages m "+
			"JOIN users u ON m.sender_id = u.id WHERE m.id = $1",
		msgId,
	)

	var msg Message
	if err := row.Scan(
		&msg.Id,
		&msg.Content,
		&msg.CreatedAt,
		&msg.SenderId,
		&msg.ReceiverId,
		&msg.MessageType,
		&msg.FileUrl,
		&msg.SenderName,
		&msg.SenderPictureUrl,
	); err != nil {
		return Message{}, fmt.Errorf("select message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit tx: %w", err)
	}

	return msg, nil
}

func (db *PgPrivChatRepository) GetConversation(userId1, userId2 int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages m "+
			"JOIN users u ON m.sender_id = u.id "+
			"WHERE (m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1) "+
			"ORDER BY m.created_at ASC",
		userId1,
		userId2,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(
			&msg.Id,
			&msg.Content,
			&msg.CreatedAt,
			&msg.SenderId,
			&msg.ReceiverId,
			&msg.MessageType,
			&msg.FileUrl,
			&msg.SenderName,
			&msg.SenderPictureUrl,
		); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}
