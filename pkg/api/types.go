package api

// createSessionRequest is the body of POST /session/create.
type createSessionRequest struct {
	Pattern       string         `json:"pattern"`
	VoiceSettings map[string]any `json:"voice_settings,omitempty"`
}

// createSessionResponse is the response body of POST /session/create
// and of the reconnect endpoints, all of which hand back fresh room
// access material (§4.8).
type createSessionResponse struct {
	SessionID  string  `json:"session_id"`
	UniqueLink string  `json:"unique_link"`
	RoomName   string  `json:"room_name"`
	Token      string  `json:"token,omitempty"`
	Status     string  `json:"status"`
	Warning    *string `json:"warning,omitempty"`
}

// reconnectResponse is the response body of both reconnect endpoints.
type reconnectResponse struct {
	Token    string  `json:"token"`
	RoomName string  `json:"room_name"`
	Status   string  `json:"status"`
	Warning  *string `json:"warning,omitempty"`
}

// updateAnketaRequest is the body of PUT/POST /session/{id}/anketa.
type updateAnketaRequest struct {
	AnketaData map[string]any `json:"anketa_data"`
	AnketaMD   string         `json:"anketa_md"`
}

// anketaResponse is the body of GET /session/{id}/anketa.
type anketaResponse struct {
	AnketaData     map[string]any `json:"anketa_data"`
	AnketaMD       string         `json:"anketa_md"`
	Status         string         `json:"status"`
	RuntimeStatus  string         `json:"runtime_status"`
	CompanyName    string         `json:"company_name"`
	UpdatedAt      string         `json:"updated_at"`
	CompletionRate float64        `json:"completion_rate"`
}

// updateDialogueRequest is the body of PUT /session/{id}/dialogue.
type updateDialogueRequest struct {
	DialogueHistory []dialogueTurnDTO `json:"dialogue_history"`
	DurationSeconds float64           `json:"duration_seconds"`
	Status          string            `json:"status,omitempty"`
}

type dialogueTurnDTO struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	Phase     string `json:"phase,omitempty"`
}

// updateRuntimeStatusRequest is the body of PUT /session/{id}/runtime-status.
type updateRuntimeStatusRequest struct {
	RuntimeStatus string `json:"runtime_status"`
}

// updateVoiceConfigRequest is the body of PUT /session/{id}/voice-config,
// an open map so the handler can see and reject unrecognised keys (§4.1).
type updateVoiceConfigRequest map[string]any

// bulkDeleteRequest is the body of POST /sessions/delete (§8 scenario S3).
type bulkDeleteRequest struct {
	SessionIDs []string `json:"session_ids"`
}

// bulkDeleteResponse is the response of POST /sessions/delete.
type bulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// listSessionsResponse is the response of GET /sessions.
type listSessionsResponse struct {
	Sessions []sessionSummaryDTO `json:"sessions"`
	Total    int                 `json:"total"`
}

type sessionSummaryDTO struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	CompanyName  string `json:"company_name,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	HasDocuments bool   `json:"has_documents"`
}

// roomsResponse is the response of GET /rooms.
type roomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	Name            string `json:"name"`
	NumParticipants int    `json:"num_participants"`
	CreationTime    int64  `json:"creation_time"`
}

// deleteRoomsResponse is the response of DELETE /rooms.
type deleteRoomsResponse struct {
	Deleted int `json:"deleted"`
}

// uploadDocumentsResponse is the response of POST /session/{id}/documents/upload.
type uploadDocumentsResponse struct {
	SavedFiles []string `json:"saved_files"`
	Summary    string   `json:"summary"`
}
