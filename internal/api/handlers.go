package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/npezzotti/anon-chat/internal/database"
	"github.com/npezzotti/anon-chat/internal/stats"
	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/npezzotti/anon-chat/internal/uploads"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

func (s *AnonChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

func (s *AnonChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Error().Err(errResp).Msg("request failed")
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *AnonChatApp) incr(name string) {
	if s.stats != nil {
		s.stats.Incr(name)
	}
}

func (s *AnonChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("health check")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *AnonChatApp) getRooms(w http.ResponseWriter, r *http.Request) {
	dbRooms, err := s.db.ListRooms(r.Context())
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, room := range dbRooms {
		rooms = append(rooms, toRoom(room))
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *AnonChatApp) getOnlineUsers(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")

	var count int
	if s.presence != nil {
		n, err := s.presence.Count(r.Context(), roomId)
		if err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
		count = n
	}

	s.writeJson(w, http.StatusOK, types.OnlineCount{Count: count})
}

func (s *AnonChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")
	s.incr(stats.MetricPolls)

	if anonymousId := r.URL.Query().Get("anonymous_id"); anonymousId != "" && s.presence != nil {
		if err := s.presence.Seen(r.Context(), roomId, anonymousId); err != nil {
			s.log.Warn().Err(err).Str("room_id", roomId).Msg("record presence")
		}
	}

	dbMessages, err := s.db.ListMessages(r.Context(), roomId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, msg := range dbMessages {
		messages = append(messages, toMessage(msg))
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *AnonChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req types.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError("Invalid request body"))
		return
	}

	if req.RoomId == "" || strings.TrimSpace(req.Message) == "" {
		s.writeError(w, NewBadRequestError("Missing room_id or message"))
		return
	}

	replyTo, err := s.replySnapshot(r, req.RoomId, req.ParentId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	_, err = s.db.CreateMessage(r.Context(), database.CreateMessageParams{
		RoomId:      req.RoomId,
		AnonymousId: req.AnonymousId,
		Text:        req.Message,
		ParentId:    req.ParentId,
		ReplyTo:     replyTo,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewNotFoundError("Room not found"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.incr(stats.MetricMessagesSent)
	s.writeJson(w, http.StatusOK, types.Result{Success: true})
}

func (s *AnonChatApp) uploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, NewRequestEntityTooLargeError())
			return
		}
		s.writeError(w, NewBadRequestError("No file provided"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, NewBadRequestError("No file provided"))
		return
	}
	defer file.Close()

	roomId := r.FormValue("room_id")
	anonymousId := r.FormValue("anonymous_id")
	parentId := r.FormValue("parent_id")

	if header.Filename == "" {
		s.writeError(w, NewBadRequestError("No file selected"))
		return
	}
	if !uploads.Allowed(header.Filename) {
		s.writeError(w, NewBadRequestError("File type not allowed"))
		return
	}
	if roomId == "" {
		s.writeError(w, NewBadRequestError("Missing room_id"))
		return
	}

	exists, err := s.db.RoomExists(r.Context(), roomId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if !exists {
		s.writeError(w, NewNotFoundError("Room not found"))
		return
	}

	stored, err := s.files.Save(header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, uploads.ErrFileTooLarge):
			s.writeError(w, NewRequestEntityTooLargeError())
		case errors.Is(err, uploads.ErrFileTypeNotAllowed):
			s.writeError(w, NewBadRequestError("File type not allowed"))
		case errors.Is(err, uploads.ErrEmptyFilename):
			s.writeError(w, NewBadRequestError("No file selected"))
		default:
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}

	replyTo, err := s.replySnapshot(r, roomId, parentId)
	if err != nil {
		s.removeUpload(stored.Name)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	_, err = s.db.CreateMessage(r.Context(), database.CreateMessageParams{
		RoomId:      roomId,
		AnonymousId: anonymousId,
		FileUrl:     stored.Url,
		FileName:    uploads.SecureFilename(header.Filename),
		FileSize:    stored.Size,
		FileType:    string(stored.FileType),
		ParentId:    parentId,
		ReplyTo:     replyTo,
	})
	if err != nil {
		s.removeUpload(stored.Name)
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewNotFoundError("Room not found"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.incr(stats.MetricFilesUploaded)
	s.writeJson(w, http.StatusOK, types.Result{Success: true, FileUrl: stored.Url})
}

func (s *AnonChatApp) removeUpload(name string) {
	if err := os.Remove(filepath.Join(s.files.Dir(), name)); err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("remove orphaned upload")
	}
}

// replySnapshot copies the parent message when parentId names one in the
// room. An unknown parent leaves the reply without a snapshot.
func (s *AnonChatApp) replySnapshot(r *http.Request, roomId, parentId string) (*database.ReplySnapshot, error) {
	if parentId == "" {
		return nil, nil
	}

	parent, err := s.db.GetMessage(r.Context(), roomId, parentId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get parent message: %w", err)
	}

	return &database.ReplySnapshot{
		Id:          parent.Id,
		AnonymousId: parent.AnonymousId,
		Text:        parent.Text,
		FileName:    parent.FileName,
		FileType:    parent.FileType,
	}, nil
}

func (s *AnonChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req types.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError("Invalid request body"))
		return
	}

	name := plainText(req.RoomName)
	if name == "" {
		s.writeError(w, NewBadRequestError("Room name is required"))
		return
	}
	if req.IsLocked && req.RoomPassword == "" {
		s.writeError(w, NewBadRequestError("Room password is required"))
		return
	}

	roomId, err := s.allocateRoomId(r, name)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	var pwdHash string
	if req.IsLocked {
		pwdHash, err = hashPassword(req.RoomPassword)
		if err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
	}

	admin, _ := Admin(r.Context())
	room, err := s.db.CreateRoom(r.Context(), database.CreateRoomParams{
		Id:           roomId,
		Name:         name,
		Description:  plainText(req.RoomDescription),
		IsLocked:     req.IsLocked,
		PasswordHash: pwdHash,
		CreatedBy:    admin,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.log.Info().Str("room_id", room.Id).Bool("locked", room.IsLocked).Msg("room created")
	s.incr(stats.MetricRoomsCreated)
	s.writeJson(w, http.StatusOK, types.Result{Success: true, RoomId: room.Id})
}

func (s *AnonChatApp) updateRoom(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError("Invalid request body"))
		return
	}

	name := plainText(req.RoomName)
	if req.RoomId == "" || req.RoomId == "null" || name == "" {
		s.writeError(w, NewBadRequestError("Room ID and name are required"))
		return
	}

	current, err := s.db.GetRoom(r.Context(), req.RoomId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewNotFoundError("Room not found"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	params := database.UpdateRoomParams{
		Id:          req.RoomId,
		Name:        name,
		Description: plainText(req.RoomDescription),
		IsLocked:    req.IsLocked,
	}

	// the password only changes while the room is locked
	if req.IsLocked {
		switch {
		case req.RoomPassword != "":
			pwdHash, err := hashPassword(req.RoomPassword)
			if err != nil {
				s.writeError(w, NewInternalServerError(err))
				return
			}
			params.PasswordHash = &pwdHash
		case current.PasswordHash == "":
			s.writeError(w, NewBadRequestError("Room password is required"))
			return
		}
	}

	if _, err := s.db.UpdateRoom(r.Context(), params); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewNotFoundError("Room not found"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, types.Result{Success: true})
}

func (s *AnonChatApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	var req types.DeleteRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError("Invalid request body"))
		return
	}

	if req.RoomId == "" {
		s.writeError(w, NewBadRequestError("Room ID is required"))
		return
	}

	if err := s.db.DeleteRoom(r.Context(), req.RoomId); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewNotFoundError("Room not found"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if s.presence != nil {
		if err := s.presence.Forget(r.Context(), req.RoomId); err != nil {
			s.log.Warn().Err(err).Str("room_id", req.RoomId).Msg("forget room presence")
		}
	}

	s.log.Info().Str("room_id", req.RoomId).Msg("room deleted")
	s.incr(stats.MetricRoomsDeleted)
	s.writeJson(w, http.StatusOK, types.Result{Success: true})
}

func (s *AnonChatApp) verifyRoomPassword(w http.ResponseWriter, r *http.Request) {
	var req types.VerifyRoomPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError("Invalid request body"))
		return
	}

	if req.RoomId == "" || req.Password == "" {
		s.writeError(w, NewBadRequestError("Missing room_id or password"))
		return
	}

	room, err := s.db.GetRoom(r.Context(), req.RoomId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewNotFoundError("Room not found"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if !verifyPassword(room.PasswordHash, req.Password) {
		s.writeError(w, NewRejectedError("Incorrect password"))
		return
	}

	s.writeJson(w, http.StatusOK, types.Result{Success: true})
}

// serveUploads serves stored attachments without directory listings.
func (s *AnonChatApp) serveUploads(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		fs.ServeHTTP(w, r)
	})
}

func toRoom(room database.Room) types.Room {
	return types.Room{
		Id:          room.Id,
		Name:        room.Name,
		Description: room.Description,
		IsLocked:    room.IsLocked,
		CreatedBy:   room.CreatedBy,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
}

func toMessage(msg database.Message) types.Message {
	m := types.Message{
		Id:          msg.Id,
		AnonymousId: msg.AnonymousId,
		Text:        msg.Text,
		FileUrl:     msg.FileUrl,
		FileName:    msg.FileName,
		FileSize:    msg.FileSize,
		FileType:    types.FileType(msg.FileType),
		Timestamp:   msg.CreatedAt.UTC().Format(time.RFC3339),
		ParentId:    msg.ParentId,
	}

	if msg.ReplyTo != nil {
		m.ReplyToMessage = &types.ReplySnapshot{
			Id:          msg.ReplyTo.Id,
			AnonymousId: msg.ReplyTo.AnonymousId,
			Text:        msg.ReplyTo.Text,
			FileName:    msg.ReplyTo.FileName,
			FileType:    types.FileType(msg.ReplyTo.FileType),
		}
	}

	return m
}
