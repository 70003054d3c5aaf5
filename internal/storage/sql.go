package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/attunelabs/attune/internal/crypto"
	"github.com/attunelabs/attune/pkg/models"
)

// SQLRepository implements Repository over database/sql. Queries are written
// with ? placeholders and rebound for drivers that use $n.
type SQLRepository struct {
	db       *sql.DB
	dollar   bool
	closeown bool
}

var _ Repository = (*SQLRepository)(nil)

// NewSQLRepository wraps an existing connection. Set dollarPlaceholders for
// Postgres-style drivers.
func NewSQLRepository(db *sql.DB, dollarPlaceholders bool) *SQLRepository {
	return &SQLRepository{db: db, dollar: dollarPlaceholders}
}

// Close closes the underlying connection if this repository opened it.
func (r *SQLRepository) Close() error {
	if !r.closeown {
		return nil
	}
	return r.db.Close()
}

func (r *SQLRepository) rebind(query string) string {
	if !r.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(query), args...)
}

func (r *SQLRepository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(query), args...)
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(query), args...)
}

// Schema creates the tables the repository needs. idType is the
// driver-appropriate auto-increment column definition.
func (r *SQLRepository) Schema(ctx context.Context, idType string) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + idType + `,
			username TEXT NOT NULL UNIQUE,
			encryption_key TEXT NOT NULL DEFAULT '',
			temperature DOUBLE PRECISION NOT NULL DEFAULT 0,
			messages_json TEXT NOT NULL DEFAULT '',
			encrypted_memory TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			user_id BIGINT NOT NULL,
			pref_type TEXT NOT NULL,
			pref_key TEXT NOT NULL,
			value TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 1,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, pref_type, pref_key)
		)`,
		`CREATE TABLE IF NOT EXISTS skills (
			id ` + idType + `,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS user_skills (
			user_id BIGINT NOT NULL,
			skill_id BIGINT NOT NULL,
			level INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, skill_id)
		)`,
		`CREATE TABLE IF NOT EXISTS trainings (
			id ` + idType + `,
			user_id BIGINT NOT NULL,
			skill_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			progress DOUBLE PRECISION NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT '',
			UNIQUE (user_id, skill_id)
		)`,
		`CREATE TABLE IF NOT EXISTS room_messages (
			id ` + idType + `,
			room_id TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			username TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS room_members (
			room_id TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			PRIMARY KEY (room_id, user_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return r.scanUser(r.queryRow(ctx,
		`SELECT id, username, encryption_key, temperature, created_at FROM users WHERE id = ?`, id))
}

func (r *SQLRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.scanUser(r.queryRow(ctx,
		`SELECT id, username, encryption_key, temperature, created_at FROM users WHERE username = ?`, username))
}

func (r *SQLRepository) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.EncryptionKey, &user.Temperature, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *SQLRepository) AddUser(ctx context.Context, user *models.User) error {
	if user == nil || user.Username == "" {
		return fmt.Errorf("user with username is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if r.dollar {
		err := r.queryRow(ctx,
			`INSERT INTO users (username, encryption_key, temperature, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
			user.Username, user.EncryptionKey, user.Temperature, user.CreatedAt).Scan(&user.ID)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	}
	res, err := r.exec(ctx,
		`INSERT INTO users (username, encryption_key, temperature, created_at) VALUES (?, ?, ?, ?)`,
		user.Username, user.EncryptionKey, user.Temperature, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		user.ID = id
	}
	return nil
}

func (r *SQLRepository) SetUserTemperature(ctx context.Context, id int64, temperature float64) error {
	_, err := r.exec(ctx, `UPDATE users SET temperature = ? WHERE id = ?`, temperature, id)
	return err
}

func (r *SQLRepository) EnsureEncryptionKey(ctx context.Context, id int64) (string, error) {
	var current string
	err := r.queryRow(ctx, `SELECT encryption_key FROM users WHERE id = ?`, id).Scan(&current)
	if err != nil {
		return "", fmt.Errorf("load encryption key: %w", err)
	}
	if current != "" {
		return current, nil
	}
	key, err := crypto.NewKey()
	if err != nil {
		return "", err
	}
	encoded := crypto.EncodeKey(key)
	// Only claim the slot if still empty; another caller may have raced us.
	res, err := r.exec(ctx, `UPDATE users SET encryption_key = ? WHERE id = ? AND encryption_key = ''`, encoded, id)
	if err != nil {
		return "", fmt.Errorf("store encryption key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := r.queryRow(ctx, `SELECT encryption_key FROM users WHERE id = ?`, id).Scan(&encoded); err != nil {
			return "", fmt.Errorf("reload encryption key: %w", err)
		}
	}
	return encoded, nil
}

func (r *SQLRepository) GetEncryptedMemory(ctx context.Context, userID int64) (string, error) {
	var blob string
	err := r.queryRow(ctx, `SELECT encrypted_memory FROM users WHERE id = ?`, userID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load encrypted memory: %w", err)
	}
	return blob, nil
}

func (r *SQLRepository) SetEncryptedMemory(ctx context.Context, userID int64, blob string) error {
	_, err := r.exec(ctx, `UPDATE users SET encrypted_memory = ? WHERE id = ?`, blob, userID)
	return err
}

func (r *SQLRepository) GetLegacyMessages(ctx context.Context, userID int64) ([]models.Message, error) {
	var raw string
	err := r.queryRow(ctx, `SELECT messages_json FROM users WHERE id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || raw == "" {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load legacy messages: %w", err)
	}
	var msgs []models.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		// The legacy column was written by an older system; unreadable
		// content is equivalent to absent.
		return nil, nil
	}
	return msgs, nil
}

func (r *SQLRepository) GetPreferences(ctx context.Context, userID int64, prefType string) (map[string]models.Preference, error) {
	query := `SELECT user_id, pref_type, pref_key, value, confidence, updated_at FROM preferences WHERE user_id = ?`
	args := []any{userID}
	if prefType != "" {
		query += ` AND pref_type = ?`
		args = append(args, prefType)
	}
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	out := map[string]models.Preference{}
	for rows.Next() {
		var pref models.Preference
		var value string
		if err := rows.Scan(&pref.UserID, &pref.Type, &pref.Key, &value, &pref.Confidence, &pref.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		pref.Value = json.RawMessage(value)
		out[pref.Key] = pref
	}
	return out, rows.Err()
}

func (r *SQLRepository) SetPreference(ctx context.Context, userID int64, prefType, key string, value any, confidence float64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal preference value: %w", err)
	}
	now := time.Now().UTC()
	if r.dollar {
		_, err = r.exec(ctx,
			`INSERT INTO preferences (user_id, pref_type, pref_key, value, confidence, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, pref_type, pref_key)
			 DO UPDATE SET value = EXCLUDED.value, confidence = EXCLUDED.confidence, updated_at = EXCLUDED.updated_at`,
			userID, prefType, key, string(raw), confidence, now)
		return err
	}
	_, err = r.exec(ctx,
		`INSERT OR REPLACE INTO preferences (user_id, pref_type, pref_key, value, confidence, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, prefType, key, string(raw), confidence, now)
	return err
}

func (r *SQLRepository) DeletePreference(ctx context.Context, userID int64, prefType, key string) error {
	query := `DELETE FROM preferences WHERE user_id = ?`
	args := []any{userID}
	if prefType != "" {
		query += ` AND pref_type = ?`
		args = append(args, prefType)
	}
	if key != "" {
		query += ` AND pref_key = ?`
		args = append(args, key)
	}
	_, err := r.exec(ctx, query, args...)
	return err
}

func (r *SQLRepository) GetOrCreateSkill(ctx context.Context, name string) (*models.Skill, error) {
	if name == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	var skill models.Skill
	err := r.queryRow(ctx, `SELECT id, name FROM skills WHERE name = ?`, name).Scan(&skill.ID, &skill.Name)
	if err == nil {
		return &skill, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load skill: %w", err)
	}
	skill.Name = name
	if r.dollar {
		if err := r.queryRow(ctx, `INSERT INTO skills (name) VALUES (?) RETURNING id`, name).Scan(&skill.ID); err != nil {
			return nil, fmt.Errorf("insert skill: %w", err)
		}
		return &skill, nil
	}
	res, err := r.exec(ctx, `INSERT INTO skills (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert skill: %w", err)
	}
	skill.ID, _ = res.LastInsertId()
	return &skill, nil
}

func (r *SQLRepository) GetSkillLevel(ctx context.Context, userID, skillID int64) (int, error) {
	var level int
	err := r.queryRow(ctx, `SELECT level FROM user_skills WHERE user_id = ? AND skill_id = ?`, userID, skillID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load skill level: %w", err)
	}
	return level, nil
}

func (r *SQLRepository) SetSkillLevel(ctx context.Context, userID, skillID int64, level int) error {
	if level < 0 || level > models.MaxSkillLevel {
		return fmt.Errorf("level %d out of range", level)
	}
	if r.dollar {
		_, err := r.exec(ctx,
			`INSERT INTO user_skills (user_id, skill_id, level) VALUES (?, ?, ?)
			 ON CONFLICT (user_id, skill_id) DO UPDATE SET level = EXCLUDED.level`,
			userID, skillID, level)
		return err
	}
	_, err := r.exec(ctx,
		`INSERT OR REPLACE INTO user_skills (user_id, skill_id, level) VALUES (?, ?, ?)`,
		userID, skillID, level)
	return err
}

func (r *SQLRepository) AddTraining(ctx context.Context, training *models.Training) error {
	if training == nil {
		return fmt.Errorf("training is required")
	}
	if r.dollar {
		err := r.queryRow(ctx,
			`INSERT INTO trainings (user_id, skill_id, status, progress, notes) VALUES (?, ?, ?, ?, ?) RETURNING id`,
			training.UserID, training.SkillID, string(training.Status), training.Progress, training.Notes).Scan(&training.ID)
		if err != nil {
			return fmt.Errorf("insert training: %w", err)
		}
		return nil
	}
	res, err := r.exec(ctx,
		`INSERT INTO trainings (user_id, skill_id, status, progress, notes) VALUES (?, ?, ?, ?, ?)`,
		training.UserID, training.SkillID, string(training.Status), training.Progress, training.Notes)
	if err != nil {
		return fmt.Errorf("insert training: %w", err)
	}
	training.ID, _ = res.LastInsertId()
	return nil
}

func (r *SQLRepository) GetTraining(ctx context.Context, userID, skillID int64) (*models.Training, error) {
	var training models.Training
	var status string
	err := r.queryRow(ctx,
		`SELECT id, user_id, skill_id, status, progress, notes FROM trainings WHERE user_id = ? AND skill_id = ?`,
		userID, skillID).Scan(&training.ID, &training.UserID, &training.SkillID, &status, &training.Progress, &training.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load training: %w", err)
	}
	training.Status = models.TrainingStatus(status)
	return &training, nil
}

func (r *SQLRepository) UpdateTrainingStatus(ctx context.Context, userID, skillID int64, status models.TrainingStatus) error {
	_, err := r.exec(ctx,
		`UPDATE trainings SET status = ? WHERE user_id = ? AND skill_id = ?`,
		string(status), userID, skillID)
	return err
}

func (r *SQLRepository) AddRoomMessage(ctx context.Context, msg *models.RoomMessage) error {
	if msg == nil || msg.RoomID == "" {
		return fmt.Errorf("room message with room id is required")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if r.dollar {
		err := r.queryRow(ctx,
			`INSERT INTO room_messages (room_id, user_id, username, content, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
			msg.RoomID, msg.UserID, msg.Username, msg.Content, msg.CreatedAt).Scan(&msg.ID)
		if err != nil {
			return fmt.Errorf("insert room message: %w", err)
		}
		return nil
	}
	res, err := r.exec(ctx,
		`INSERT INTO room_messages (room_id, user_id, username, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.RoomID, msg.UserID, msg.Username, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert room message: %w", err)
	}
	msg.ID, _ = res.LastInsertId()
	return nil
}

func (r *SQLRepository) GetRoomMessages(ctx context.Context, roomID string, limit int, beforeID int64) ([]*models.RoomMessage, error) {
	query := `SELECT id, room_id, user_id, username, content, created_at FROM room_messages WHERE room_id = ?`
	args := []any{roomID}
	if beforeID > 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load room messages: %w", err)
	}
	defer rows.Close()

	var out []*models.RoomMessage
	for rows.Next() {
		var msg models.RoomMessage
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Username, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room message: %w", err)
		}
		out = append(out, &msg)
	}
	// Newest-first from the query; callers expect chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (r *SQLRepository) IsUserInRoom(ctx context.Context, userID int64, roomID string) (bool, error) {
	var one int
	err := r.queryRow(ctx, `SELECT 1 FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check room membership: %w", err)
	}
	return true, nil
}

func (r *SQLRepository) AddUserToRoom(ctx context.Context, userID int64, roomID string) error {
	if r.dollar {
		_, err := r.exec(ctx,
			`INSERT INTO room_members (room_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, roomID, userID)
		return err
	}
	_, err := r.exec(ctx,
		`INSERT OR IGNORE INTO room_members (room_id, user_id) VALUES (?, ?)`, roomID, userID)
	return err
}
