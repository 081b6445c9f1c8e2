package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/anketa/pkg/statemachine"
)

// Store provides durable CRUD of Session records (§4.1). All mutating
// operations besides UpdateSession go through narrow, single-statement
// atomic writes so concurrent callers never clobber unrelated fields.
type Store struct {
	client *Client
	log    *slog.Logger
}

// New wraps an already-migrated Client in a Store.
func New(client *Client) *Store {
	return &Store{client: client, log: slog.Default().With("component", "session_store")}
}

// CreateSession generates both identifiers, persists defaults, and
// returns the full record.
func (s *Store) CreateSession(ctx context.Context, voiceConfig *VoiceConfig) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		SessionID:       uuid.New().String()[:8],
		UniqueLink:      uuid.New().String(),
		RoomName:        "",
		Status:          string(statemachine.StatusActive),
		CreatedAt:       now,
		UpdatedAt:       now,
		DialogueHistory: []DialogueTurn{},
		VoiceConfig:     voiceConfig,
	}
	sess.RoomName = "consultation-" + sess.SessionID

	dialogueJSON, err := json.Marshal(sess.DialogueHistory)
	if err != nil {
		return nil, newStorageError("create_session", err)
	}
	voiceConfigJSON, err := marshalNullable(sess.VoiceConfig)
	if err != nil {
		return nil, newStorageError("create_session", err)
	}

	_, err = s.client.DB().ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, room_name, unique_link, status,
			created_at, updated_at, dialogue_history, voice_config
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.SessionID, sess.RoomName, sess.UniqueLink, sess.Status,
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt), string(dialogueJSON), voiceConfigJSON,
	)
	if err != nil {
		return nil, newStorageError("create_session", err)
	}

	s.log.Info("session_created", "session_id", sess.SessionID, "unique_link", sess.UniqueLink)
	return sess, nil
}

// GetSession returns the full record for session_id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.client.DB().QueryRowContext(ctx, selectColumns+` WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

// GetSessionByLink returns the full record for unique_link.
func (s *Store) GetSessionByLink(ctx context.Context, uniqueLink string) (*Session, error) {
	row := s.client.DB().QueryRowContext(ctx, selectColumns+` WHERE unique_link = ?`, uniqueLink)
	return scanSession(row)
}

// UpdateSession overwrites the full record. Callers that need
// read-modify-write safety should prefer the narrow atomic operations
// below instead (§4.1).
func (s *Store) UpdateSession(ctx context.Context, sess *Session) error {
	now := time.Now().UTC()

	dialogueJSON, err := json.Marshal(sess.DialogueHistory)
	if err != nil {
		return newStorageError("update_session", err)
	}
	anketaJSON, err := marshalNullableMap(sess.AnketaData)
	if err != nil {
		return newStorageError("update_session", err)
	}
	docContextJSON, err := marshalNullable(sess.DocumentContext)
	if err != nil {
		return newStorageError("update_session", err)
	}
	voiceConfigJSON, err := marshalNullable(sess.VoiceConfig)
	if err != nil {
		return newStorageError("update_session", err)
	}

	res, err := s.client.DB().ExecContext(ctx, `
		UPDATE sessions SET
			room_name = ?, status = ?, updated_at = ?,
			dialogue_history = ?, anketa_data = ?, anketa_md = ?,
			company_name = ?, contact_name = ?, duration_seconds = ?,
			output_dir = ?, document_context = ?, voice_config = ?
		WHERE session_id = ?`,
		sess.RoomName, sess.Status, formatTime(now),
		string(dialogueJSON), anketaJSON, nullableString(sess.AnketaMD),
		nullableString(sess.CompanyName), nullableString(sess.ContactName), sess.DurationSeconds,
		nullableString(sess.OutputDir), docContextJSON, voiceConfigJSON,
		sess.SessionID,
	)
	if err != nil {
		return newStorageError("update_session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return newStorageError("update_session", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	sess.UpdatedAt = now
	s.log.Info("session_updated", "session_id", sess.SessionID)
	return nil
}

// UpdateAnketa atomically writes anketa_data and anketa_md (and bumps
// updated_at), touching no other fields.
func (s *Store) UpdateAnketa(ctx context.Context, sessionID string, anketaData map[string]any, anketaMD string) error {
	anketaJSON, err := marshalNullableMap(anketaData)
	if err != nil {
		return newStorageError("update_anketa", err)
	}
	return s.execNarrowUpdate(ctx, "update_anketa", sessionID, `
		UPDATE sessions SET anketa_data = ?, anketa_md = ?, updated_at = ? WHERE session_id = ?`,
		anketaJSON, nullableString(anketaMD), formatTime(time.Now().UTC()), sessionID)
}

// UpdateDialogue atomically writes dialogue + duration, optionally
// requesting a status transition validated through the state machine
// before being committed (§4.1).
func (s *Store) UpdateDialogue(ctx context.Context, sessionID string, dialogue []DialogueTurn, durationSeconds float64, newStatus string) error {
	current, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	dialogueJSON, err := json.Marshal(dialogue)
	if err != nil {
		return newStorageError("update_dialogue", err)
	}

	status := current.Status
	if newStatus != "" {
		if err := statemachine.ValidateTransition(statemachine.Status(current.Status), statemachine.Status(newStatus), false); err != nil {
			return err
		}
		status = newStatus
	}

	return s.execNarrowUpdate(ctx, "update_dialogue", sessionID, `
		UPDATE sessions SET dialogue_history = ?, duration_seconds = ?, status = ?, updated_at = ? WHERE session_id = ?`,
		string(dialogueJSON), durationSeconds, status, formatTime(time.Now().UTC()), sessionID)
}

// UpdateStatus validates the transition through the state machine (or
// bypasses validation when force is set, the admin override) and
// commits the new status.
func (s *Store) UpdateStatus(ctx context.Context, sessionID string, newStatus string, force bool) error {
	current, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := statemachine.ValidateTransition(statemachine.Status(current.Status), statemachine.Status(newStatus), force); err != nil {
		return err
	}
	if force && current.Status != newStatus {
		s.log.Warn("status_override", "session_id", sessionID, "from", current.Status, "to", newStatus)
	}
	return s.execNarrowUpdate(ctx, "update_status", sessionID, `
		UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?`,
		newStatus, formatTime(time.Now().UTC()), sessionID)
}

// recognisedVoiceConfigKeys is the closed set accepted at the storage
// boundary, re-checked here as defence in depth even though the HTTP
// surface already validated them (§4.1).
var recognisedVoiceConfigKeys = map[string]bool{
	"consultation_type":  true,
	"voice_gender":       true,
	"voice_tone":         true,
	"language":           true,
	"speech_speed":       true,
	"silence_duration_ms": true,
	"llm_provider":       true,
	"verbosity":          true,
	"call_direction":     true,
}

// UpdateVoiceConfig merges fields into the session's voice_config,
// silently dropping any unrecognised keys.
func (s *Store) UpdateVoiceConfig(ctx context.Context, sessionID string, fields map[string]any) error {
	current, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	merged := map[string]any{}
	if current.VoiceConfig != nil {
		b, _ := json.Marshal(current.VoiceConfig)
		_ = json.Unmarshal(b, &merged)
	}
	for k, v := range fields {
		if recognisedVoiceConfigKeys[k] {
			merged[k] = v
		} else {
			s.log.Warn("voice_config_key_dropped", "session_id", sessionID, "key", k)
		}
	}

	var vc VoiceConfig
	b, err := json.Marshal(merged)
	if err != nil {
		return newStorageError("update_voice_config", err)
	}
	if err := json.Unmarshal(b, &vc); err != nil {
		return newStorageError("update_voice_config", err)
	}

	return s.execNarrowUpdate(ctx, "update_voice_config", sessionID, `
		UPDATE sessions SET voice_config = ?, updated_at = ? WHERE session_id = ?`,
		string(b), formatTime(time.Now().UTC()), sessionID)
}

// UpdateMetadata atomically writes the denormalized company/contact
// fields used by cheap list views.
func (s *Store) UpdateMetadata(ctx context.Context, sessionID string, companyName, contactName *string) error {
	current, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	company := current.CompanyName
	if companyName != nil {
		company = *companyName
	}
	contact := current.ContactName
	if contactName != nil {
		contact = *contactName
	}
	return s.execNarrowUpdate(ctx, "update_metadata", sessionID, `
		UPDATE sessions SET company_name = ?, contact_name = ?, updated_at = ? WHERE session_id = ?`,
		nullableString(company), nullableString(contact), formatTime(time.Now().UTC()), sessionID)
}

// UpdateDocumentContext atomically writes document_context.
func (s *Store) UpdateDocumentContext(ctx context.Context, sessionID string, docContext *DocumentContext) error {
	docJSON, err := marshalNullable(docContext)
	if err != nil {
		return newStorageError("update_document_context", err)
	}
	return s.execNarrowUpdate(ctx, "update_document_context", sessionID, `
		UPDATE sessions SET document_context = ?, updated_at = ? WHERE session_id = ?`,
		docJSON, formatTime(time.Now().UTC()), sessionID)
}

// ListSessionsSummary returns lightweight summaries, optionally filtered
// by status, clamped to [1, 200] results starting at offset.
func (s *Store) ListSessionsSummary(ctx context.Context, status string, limit, offset int) ([]Summary, int, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var (
		rows *sql.Rows
		err  error
	)
	countQuery := `SELECT COUNT(*) FROM sessions`
	listQuery := `
		SELECT session_id, status, created_at, updated_at, company_name, contact_name, document_context
		FROM sessions`
	args := []any{}
	if status != "" {
		countQuery += ` WHERE status = ?`
		listQuery += ` WHERE status = ?`
		args = append(args, status)
	}
	listQuery += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	var total int
	if status != "" {
		err = s.client.DB().QueryRowContext(ctx, countQuery, status).Scan(&total)
	} else {
		err = s.client.DB().QueryRowContext(ctx, countQuery).Scan(&total)
	}
	if err != nil {
		return nil, 0, newStorageError("list_sessions_summary", err)
	}

	rows, err = s.client.DB().QueryContext(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, newStorageError("list_sessions_summary", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum              Summary
			createdAt, updatedAt string
			companyName, contactName, docContext sql.NullString
		)
		if err := rows.Scan(&sum.SessionID, &sum.Status, &createdAt, &updatedAt, &companyName, &contactName, &docContext); err != nil {
			return nil, 0, newStorageError("list_sessions_summary", err)
		}
		sum.CreatedAt, _ = parseTime(createdAt)
		sum.UpdatedAt, _ = parseTime(updatedAt)
		sum.CompanyName = companyName.String
		sum.ContactName = contactName.String
		sum.HasDocuments = docContext.Valid && docContext.String != ""
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, newStorageError("list_sessions_summary", err)
	}
	return out, total, nil
}

// DeleteSessions bulk-deletes the given session ids and returns the
// number actually removed. No cascade beyond this row: associated
// rooms/files are cleaned up by callers.
func (s *Store) DeleteSessions(ctx context.Context, sessionIDs []string) (int, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM sessions WHERE session_id IN (%s)`, strings.Join(placeholders, ","))
	res, err := s.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, newStorageError("delete_sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError("delete_sessions", err)
	}
	s.log.Info("sessions_deleted", "count", n)
	return int(n), nil
}

// execNarrowUpdate runs a single-statement UPDATE and maps a zero
// rows-affected result to ErrNotFound.
func (s *Store) execNarrowUpdate(ctx context.Context, op, sessionID, query string, args ...any) error {
	res, err := s.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return newStorageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return newStorageError(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.log.Info(op, "session_id", sessionID)
	return nil
}

const selectColumns = `
	SELECT session_id, room_name, unique_link, status, created_at, updated_at,
		dialogue_history, anketa_data, anketa_md, company_name, contact_name,
		duration_seconds, output_dir, document_context, voice_config
	FROM sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess                                                  Session
		createdAt, updatedAt                                  string
		anketaData, anketaMD, companyName, contactName        sql.NullString
		outputDir, docContextRaw, voiceConfigRaw, dialogueRaw  sql.NullString
	)
	err := row.Scan(
		&sess.SessionID, &sess.RoomName, &sess.UniqueLink, &sess.Status, &createdAt, &updatedAt,
		&dialogueRaw, &anketaData, &anketaMD, &companyName, &contactName,
		&sess.DurationSeconds, &outputDir, &docContextRaw, &voiceConfigRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, newStorageError("get_session", err)
	}

	sess.CreatedAt, _ = parseTime(createdAt)
	sess.UpdatedAt, _ = parseTime(updatedAt)
	sess.AnketaMD = anketaMD.String
	sess.CompanyName = companyName.String
	sess.ContactName = contactName.String
	sess.OutputDir = outputDir.String

	if dialogueRaw.Valid && dialogueRaw.String != "" {
		if err := json.Unmarshal([]byte(dialogueRaw.String), &sess.DialogueHistory); err != nil {
			return nil, newStorageError("get_session", err)
		}
	} else {
		sess.DialogueHistory = []DialogueTurn{}
	}
	if anketaData.Valid && anketaData.String != "" {
		if err := json.Unmarshal([]byte(anketaData.String), &sess.AnketaData); err != nil {
			return nil, newStorageError("get_session", err)
		}
	}
	if docContextRaw.Valid && docContextRaw.String != "" {
		var dc DocumentContext
		if err := json.Unmarshal([]byte(docContextRaw.String), &dc); err != nil {
			return nil, newStorageError("get_session", err)
		}
		sess.DocumentContext = &dc
	}
	if voiceConfigRaw.Valid && voiceConfigRaw.String != "" {
		var vc VoiceConfig
		if err := json.Unmarshal([]byte(voiceConfigRaw.String), &vc); err != nil {
			return nil, newStorageError("get_session", err)
		}
		sess.VoiceConfig = &vc
	}
	return &sess, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalNullableMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
