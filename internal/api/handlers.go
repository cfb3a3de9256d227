package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mfdeleon/go-privchat/internal/database"
	"github.com/mfdeleon/go-privchat/internal/relay"
	"github.com/mfdeleon/go-privchat/internal/types"
)

const maxUploadSize = 10 << 20

type CreateMessageRequest struct {
	Content     string `json:"content"`
	SenderId    int    `json:"senderId"`
	ReceiverId  int    `json:"receiverId"`
	MessageType string `json:"messageType"`
	FileUrl     string `json:"fileUrl"`
}

func (s *PrivChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *PrivChatApp) healthz(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *PrivChatApp) listUsers(w http.ResponseWriter, r *http.Request) {
	dbUsers, err := s.db.ListAccounts()
	if err != nil {
		s.log.Printf("list accounts: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, types.User{
			Id:                u.Id,
			FirstName:         u.FirstName,
			LastName:          u.LastName,
			ProfilePictureUrl: nullableString(u.ProfilePictureUrl),
		})
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *PrivChatApp) getProfile(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, profileResponse(dbUser))
}

func (s *PrivChatApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.UpdateProfileParams{UserId: userId}
	for field, dst := range map[string]**string{
		"first_name": &params.FirstName,
		"last_name":  &params.LastName,
		"bio":        &params.Bio,
	} {
		if vals, ok := r.MultipartForm.Value[field]; ok && len(vals) > 0 {
			v := vals[0]
			*dst = &v
		}
	}

	if file, header, err := r.FormFile("profile_picture"); err == nil {
		defer file.Close()

		url, err := s.saveUpload(file, header)
		if err != nil {
			s.log.Printf("save profile picture: %v", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		params.ProfilePictureUrl = &url
	}

	if params.FirstName == nil && params.LastName == nil &&
		params.Bio == nil && params.ProfilePictureUrl == nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.UpdateProfile(params)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, profileResponse(dbUser))
}

func (s *PrivChatApp) createMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.SenderId == 0 || req.ReceiverId == 0 ||
		(req.Content == "" && req.FileUrl == "") {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = types.MessageTypeText
	}

	params := database.CreateMessageParams{
		SenderId:    req.SenderId,
		ReceiverId:  req.ReceiverId,
		MessageType: messageType,
	}
	if req.Content != "" {
		params.Content = &req.Content
	}
	if req.FileUrl != "" {
		params.FileUrl = &req.FileUrl
	}

	dbMsg, err := s.db.CreateMessage(params)
	if err != nil {
		s.log.Printf("create message: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, messageResponse(dbMsg))
}

func (s *PrivChatApp) getConversation(w http.ResponseWriter, r *http.Request) {
	userId1, err1 := strconv.Atoi(r.URL.Query().Get("user_id1"))
	userId2, err2 := strconv.Atoi(r.URL.Query().Get("user_id2"))
	if err1 != nil || err2 != nil || userId1 == 0 || userId2 == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbMsgs, err := s.db.GetConversation(userId1, userId2)
	if err != nil {
		s.log.Printf("get conversation: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msgs := make([]types.Message, 0, len(dbMsgs))
	for _, m := range dbMsgs {
		msgs = append(msgs, messageResponse(m))
	}

	s.writeJson(w, http.StatusOK, msgs)
}

func (s *PrivChatApp) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	senderId, err1 := strconv.Atoi(r.FormValue("sender_id"))
	receiverId, err2 := strconv.Atoi(r.FormValue("receiver_id"))
	if err1 != nil || err2 != nil || senderId == 0 || receiverId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	defer file.Close()

	url, err := s.saveUpload(file, header)
	if err != nil {
		s.log.Printf("save upload: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbMsg, err := s.db.CreateMessage(database.CreateMessageParams{
		SenderId:    senderId,
		ReceiverId:  receiverId,
		MessageType: classifyMessageType(header.Filename),
		FileUrl:     &url,
	})
	if err != nil {
		s.log.Printf("create file message: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, messageResponse(dbMsg))
}

func (s *PrivChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := relay.NewClient(conn, s.rs, s.log)
	s.rs.RegisterClient(client)
	go client.Serve()
}

func (s *PrivChatApp) saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	sid, err := s.generateShortId()
	if err != nil {
		return "", fmt.Errorf("generate file id: %w", err)
	}

	name := sid + strings.ToLower(filepath.Ext(header.Filename))
	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return "/uploads/" + name, nil
}

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	videoExtensions = []string{".mp4", ".webm", ".mov", ".avi"}
)

func classifyMessageType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case slices.Contains(imageExtensions, ext):
		return types.MessageTypeImage
	case slices.Contains(videoExtensions, ext):
		return types.MessageTypeVideo
	default:
		return types.MessageTypeFile
	}
}

func profileResponse(user database.User) types.Profile {
	return types.Profile{
		Id:                user.Id,
		EmailAddress:      user.EmailAddress,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		Bio:               user.Bio,
		ProfilePictureUrl: nullableString(user.ProfilePictureUrl),
	}
}

func messageResponse(msg database.Message) types.Message {
	return types.Message{
		Id:                msg.Id,
		Content:           nullableString(msg.Content),
		CreatedAt:         msg.CreatedAt,
		SenderId:          msg.SenderId,
		ReceiverId:        msg.ReceiverId,
		MessageType:       msg.MessageType,
		FileUrl:           nullableString(msg.FileUrl),
		Username:          msg.SenderName,
		ProfilePictureUrl: nullableString(msg.SenderPictureUrl),
	}
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}

	return &ns.String
}
