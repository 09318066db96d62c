package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

const (
	roomColumns    = "id, name, description, is_locked, password_hash, created_by, created_at, updated_at"
	messageColumns = "id, room_id, anonymous_id, text, file_url, file_name, file_size, file_type, parent_id, " +
		"reply_id, reply_anonymous_id, reply_text, reply_file_name, reply_file_type, created_at"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (Room, error) {
	var r Room
	err := row.Scan(
		&r.Id,
		&r.Name,
		&r.Description,
		&r.IsLocked,
		&r.PasswordHash,
		&r.CreatedBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func scanMessage(row scanner) (Message, error) {
	var (
		m     Message
		id    int64
		reply struct {
			id, anonymousId, text, fileName, fileType sql.NullString
		}
	)
	err := row.Scan(
		&id,
		&m.RoomId,
		&m.AnonymousId,
		&m.Text,
		&m.FileUrl,
		&m.FileName,
		&m.FileSize,
		&m.FileType,
		&m.ParentId,
		&reply.id,
		&reply.anonymousId,
		&reply.text,
		&reply.fileName,
		&reply.fileType,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}

	m.Id = strconv.FormatInt(id, 10)
	if reply.id.Valid {
		m.ReplyTo = &ReplySnapshot{
			Id:          reply.id.String,
			AnonymousId: reply.anonymousId.String,
			Text:        reply.text.String,
			FileName:    reply.fileName.String,
			FileType:    reply.fileType.String,
		}
	}
	return m, nil
}

func (db *PgChatRepository) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+roomColumns+" FROM rooms ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]Room, 0)
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (db *PgChatRepository) GetRoom(ctx context.Context, id string) (Room, error) {
	return scanRoom(db.conn.QueryRowContext(ctx, "SELECT "+roomColumns+" FROM rooms WHERE id = $1", id))
}

func (db *PgChatRepository) RoomExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

func (db *PgChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	now := time.Now().UTC()
	return scanRoom(db.conn.QueryRowContext(ctx,
		"INSERT INTO rooms (id, name, description, is_locked, password_hash, created_by, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING "+roomColumns,
		params.Id,
		params.Name,
		params.Description,
		params.IsLocked,
		params.PasswordHash,
		params.CreatedBy,
		now,
	))
}

func (db *PgChatRepository) UpdateRoom(ctx context.Context, params UpdateRoomParams) (Room, error) {
	var hash sql.NullString
	if params.PasswordHash != nil {
		hash = sql.NullString{String: *params.PasswordHash, Valid: true}
	}

	return scanRoom(db.conn.QueryRowContext(ctx,
		"UPDATE rooms SET name = $2, description = $3, is_locked = $4, "+
			"password_hash = COALESCE($5, password_hash), updated_at = $6 "+
			"WHERE id = $1 RETURNING "+roomColumns,
		params.Id,
		params.Name,
		params.Description,
		params.IsLocked,
		hash,
		time.Now().UTC(),
	))
}

func (db *PgChatRepository) DeleteRoom(ctx context.Context, id string) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE room_id = $1", id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM rooms WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}

	return tx.Commit()
}

func (db *PgChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	var reply [5]sql.NullString
	if r := params.ReplyTo; r != nil {
		for i, v := range []string{r.Id, r.AnonymousId, r.Text, r.FileName, r.FileType} {
			reply[i] = sql.NullString{String: v, Valid: true}
		}
	}

	return scanMessage(db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (room_id, anonymous_id, text, file_url, file_name, file_size, file_type, parent_id, "+
			"reply_id, reply_anonymous_id, reply_text, reply_file_name, reply_file_type, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING "+messageColumns,
		params.RoomId,
		params.AnonymousId,
		params.Text,
		params.FileUrl,
		params.FileName,
		params.FileSize,
		params.FileType,
		params.ParentId,
		reply[0],
		reply[1],
		reply[2],
		reply[3],
		reply[4],
		time.Now().UTC(),
	))
}

func (db *PgChatRepository) GetMessage(ctx context.Context, roomId, id string) (Message, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return Message{}, ErrNotFound
	}
	return scanMessage(db.conn.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE room_id = $1 AND id = $2",
		roomId,
		n,
	))
}

func (db *PgChatRepository) ListMessages(ctx context.Context, roomId string) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE room_id = $1 ORDER BY created_at, id",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
