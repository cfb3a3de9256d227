package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mfdeleon/go-privchat/internal/config"
	"github.com/mfdeleon/go-privchat/internal/database"
	"github.com/mfdeleon/go-privchat/internal/mail"
	"github.com/mfdeleon/go-privchat/internal/testutil"
	"github.com/mfdeleon/go-privchat/internal/types"
)

func newTestApp(t *testing.T, db database.PrivChatRepository, mailer mail.Mailer) *PrivChatApp {
	t.Helper()

	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		DatabaseDSN:    "postgres://test",
		SigningKey:     []byte("test-signing-key"),
		AllowedOrigins: []string{"http://localhost:3000"},
		UploadDir:      t.TempDir(),
		OTPExpiration:  10 * time.Minute,
	}

	return NewPrivChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, mailer, cfg)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignup(t *testing.T) {
	tcases := []struct {
		name         string
		req          SignupRequest
		createErr    error
		expectCreate bool
		expectedCode int
	}{
		{
			name: "success",
			req: SignupRequest{
				FirstName: "Ada",
				LastName:  "Lovelace",
				Email:     "ada@example.com",
				Password:  "s3cret-pw",
			},
			expectCreate: true,
			expectedCode: http.StatusCreated,
		},
		{
			name: "missing first name",
			req: SignupRequest{
				LastName: "Lovelace",
				Email:    "ada@example.com",
				Password: "s3cret-pw",
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "password too short",
			req: SignupRequest{
				FirstName: "Ada",
				LastName:  "Lovelace",
				Email:     "ada@example.com",
				Password:  "short",
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "duplicate email",
			req: SignupRequest{
				FirstName: "Ada",
				LastName:  "Lovelace",
				Email:     "ada@example.com",
				Password:  "s3cret-pw",
			},
			createErr:    &pq.Error{Code: "23505"},
			expectCreate: true,
			expectedCode: http.StatusConflict,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockPrivChatRepository{}
			mailer := &mail.MockMailer{}

			if tc.expectCreate {
				user := database.User{
					Id:           1,
					FirstName:    tc.req.FirstName,
					LastName:     tc.req.LastName,
					EmailAddress: tc.req.Email,
				}
				db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
					return p.EmailAddress == tc.req.Email &&
						p.FirstName == tc.req.FirstName &&
						verifyPassword(p.PasswordHash, tc.req.Password)
				})).Return(user, tc.createErr)

				if tc.createErr == nil {
					db.On("SetAccountOTP", 1, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
						Return(nil)
					mailer.On("SendOTP", tc.req.Email, tc.req.FirstName, mock.AnythingOfType("string")).
						Return(nil)
				}
			}

			app := newTestApp(t, db, mailer)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", jsonBody(t, tc.req))
			rr := httptest.NewRecorder()

			app.signup(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)

			if tc.expectedCode == http.StatusCreated {
				var resp SignupResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, 1, resp.UserId)
				assert.Equal(t, "/verify-otp?user_id=1", resp.RedirectTo)
			}

			db.AssertExpectations(t)
			mailer.AssertExpectations(t)
		})
	}
}

func TestLogin(t *testing.T) {
	pwdHash, err := hashPassword("s3cret-pw")
	require.NoError(t, err)

	tcases := []struct {
		name         string
		req          LoginRequest
		dbUser       database.User
		dbErr        error
		expectedCode int
		expectCookie bool
		redirectTo   string
	}{
		{
			name: "success",
			req:  LoginRequest{Email: "ada@example.com", Password: "s3cret-pw"},
			dbUser: database.User{
				Id:           1,
				FirstName:    "Ada",
				EmailAddress: "ada@example.com",
				PasswordHash: pwdHash,
				IsVerified:   true,
			},
			expectedCode: http.StatusOK,
			expectCookie: true,
		},
		{
			name:         "missing password",
			req:          LoginRequest{Email: "ada@example.com"},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "unknown email",
			req:          LoginRequest{Email: "ghost@example.com", Password: "s3cret-pw"},
			dbErr:        sql.ErrNoRows,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "wrong password",
			req:  LoginRequest{Email: "ada@example.com", Password: "wrong-pw"},
			dbUser: database.User{
				Id:           1,
				EmailAddress: "ada@example.com",
				PasswordHash: pwdHash,
				IsVerified:   true,
			},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "unverified account",
			req:  LoginRequest{Email: "ada@example.com", Password: "s3cret-pw"},
			dbUser: database.User{
				Id:           1,
				EmailAddress: "ada@example.com",
				PasswordHash: pwdHash,
			},
			expectedCode: http.StatusForbidden,
			redirectTo:   "/verify-otp?user_id=1",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockPrivChatRepository{}
			if tc.req.Email != "" && tc.req.Password != "" {
				db.On("GetAccountByEmail", tc.req.Email).Return(tc.dbUser, tc.dbErr)
			}

			app := newTestApp(t, db, &mail.MockMailer{})

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, tc.req))
			rr := httptest.NewRecorder()

			app.login(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)

			cookie := findCookie(rr, tokenCookieKey)
			if tc.expectCookie {
				require.NotNil(t, cookie, "expected a session cookie")
				assert.NotEmpty(t, cookie.Value)
			} else {
				assert.Nil(t, cookie)
			}

			if tc.redirectTo != "" {
				var resp ApiError
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, tc.redirectTo, resp.RedirectTo)
			}
		})
	}
}

func TestVerifyOTP(t *testing.T) {
	tcases := []struct {
		name         string
		req          VerifyOTPRequest
		dbUser       database.User
		dbErr        error
		expectVerify bool
		expectedCode int
	}{
		{
			name: "success",
			req:  VerifyOTPRequest{UserId: 1, OTP: "123456"},
			dbUser: database.User{
				Id:           1,
				OtpSecret:    sql.NullString{String: "123456", Valid: true},
				OtpCreatedAt: sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
			},
			expectVerify: true,
			expectedCode: http.StatusOK,
		},
		{
			name:         "unknown user",
			req:          VerifyOTPRequest{UserId: 99, OTP: "123456"},
			dbErr:        sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
		{
			name: "already verified",
			req:  VerifyOTPRequest{UserId: 1, OTP: "123456"},
			dbUser: database.User{
				Id:         1,
				IsVerified: true,
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "wrong code",
			req:  VerifyOTPRequest{UserId: 1, OTP: "000000"},
			dbUser: database.User{
				Id:           1,
				OtpSecret:    sql.NullString{String: "123456", Valid: true},
				OtpCreatedAt: sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "expired code",
			req:  VerifyOTPRequest{UserId: 1, OTP: "123456"},
			dbUser: database.User{
				Id:           1,
				OtpSecret:    sql.NullString{String: "123456", Valid: true},
				OtpCreatedAt: sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true},
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "missing otp",
			req:          VerifyOTPRequest{UserId: 1},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockPrivChatRepository{}
			if tc.req.UserId != 0 && tc.req.OTP != "" {
				db.On("GetAccountById", tc.req.UserId).Return(tc.dbUser, tc.dbErr)
			}
			if tc.expectVerify {
				db.On("MarkAccountVerified", tc.dbUser.Id).Return(nil)
			}

			app := newTestApp(t, db, &mail.MockMailer{})

			req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-otp", jsonBody(t, tc.req))
			rr := httptest.NewRecorder()

			app.verifyOTP(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)

			if tc.expectVerify {
				require.NotNil(t, findCookie(rr, tokenCookieKey),
					"verification should start a session")
			}

			db.AssertExpectations(t)
		})
	}
}

func TestResendOTP(t *testing.T) {
	db := &database.MockPrivChatRepository{}
	mailer := &mail.MockMailer{}

	user := database.User{
		Id:           1,
		FirstName:    "Ada",
		EmailAddress: "ada@example.com",
	}
	db.On("GetAccountById", 1).Return(user, nil)
	db.On("SetAccountOTP", 1, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(nil)
	mailer.On("SendOTP", user.EmailAddress, user.FirstName, mock.AnythingOfType("string")).
		Return(nil)

	app := newTestApp(t, db, mailer)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/resend-otp",
		jsonBody(t, ResendOTPRequest{UserId: 1}))
	rr := httptest.NewRecorder()

	app.resendOTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	db.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestResendOTP_AlreadyVerified(t *testing.T) {
	db := &database.MockPrivChatRepository{}
	db.On("GetAccountById", 1).Return(database.User{Id: 1, IsVerified: true}, nil)

	app := newTestApp(t, db, &mail.MockMailer{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/resend-otp",
		jsonBody(t, ResendOTPRequest{UserId: 1}))
	rr := httptest.NewRecorder()

	app.resendOTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListUsers(t *testing.T) {
	db := &database.MockPrivChatRepository{}
	db.On("ListAccounts").Return([]database.User{
		{Id: 1, FirstName: "Ada", LastName: "Lovelace"},
		{
			Id:                2,
			FirstName:         "Grace",
			LastName:          "Hopper",
			ProfilePictureUrl: sql.NullString{String: "/uploads/grace.png", Valid: true},
		},
	}, nil)

	app := newTestApp(t, db, &mail.MockMailer{})

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rr := httptest.NewRecorder()

	app.listUsers(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var users []types.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
	require.Len(t, users, 2)
	assert.Equal(t, "Ada", users[0].FirstName)
	assert.Nil(t, users[0].ProfilePictureUrl)
	require.NotNil(t, users[1].ProfilePictureUrl)
	assert.Equal(t, "/uploads/grace.png", *users[1].ProfilePictureUrl)
}

func TestGetProfile(t *testing.T) {
	db := &database.MockPrivChatRepository{}
	db.On("GetAccountById", 1).Return(database.User{
		Id:           1,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		EmailAddress: "ada@example.com",
		Bio:          "first programmer",
	}, nil)

	app := newTestApp(t, db, &mail.MockMailer{})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req = req.WithContext(WithUserId(req.Context(), 1))
	rr := httptest.NewRecorder()

	app.getProfile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var profile types.Profile
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&profile))
	assert.Equal(t, "ada@example.com", profile.EmailAddress)
	assert.Equal(t, "first programmer", profile.Bio)
}

func TestUpdateProfile(t *testing.T) {
	db := &database.MockPrivChatRepository{}
	db.On("UpdateProfile", mock.MatchedBy(func(p database.UpdateProfileParams) bool {
		return p.UserId == 1 &&
			p.Bio != nil && *p.Bio == "new bio" &&
			p.FirstName == nil && p.LastName == nil && p.ProfilePictureUrl == nil
	})).Return(database.User{Id: 1, FirstName: "Ada", Bio: "new bio"}, nil)

	app := newTestApp(t, db, &mail.MockMailer{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("bio", "new bio"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/profile", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(WithUserId(req.Context(), 1))
	rr := httptest.NewRecorder()

	app.updateProfile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var profile types.Profile
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&profile))
	assert.Equal(t, "new bio", profile.Bio)
	db.AssertExpectations(t)
}

func TestUpdateProfile_NoFields(t *testing.T) {
	db := &database.MockPrivChatRepository{}
	app := newTestApp(t, db, &mail.MockMailer{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/profile", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(WithUserId(req.Context(), 1))
	rr := httptest.NewRecorder()

	app.updateProfile(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	db.AssertNotCalled(t, "UpdateProfile", mock.Anything)
}

func TestCreateMessage(t *testing.T) {
	createdAt := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	tcases := []struct {
		name         string
		req          CreateMessageRequest
		dbMsg        database.Message
		dbErr        error
		expectCreate bool
		expectedCode int
	}{
		{
			name: "text message",
			req: CreateMessageRequest{
				Content:    "hello",
				SenderId:   1,
				ReceiverId: 2,
			},
			dbMsg: database.Message{
				Id:          42,
				Content:     sql.NullString{String: "hello", Valid: true},
				SenderId:    1,
				ReceiverId:  2,
				MessageType: types.MessageTypeText,
				CreatedAt:   createdAt,
				SenderName:  "Ada",
			},
			expectCreate: true,
			expectedCode: http.StatusCreated,
		},
		{
			name: "file message",
			req: CreateMessageRequest{
				SenderId:    1,
				ReceiverId:  2,
				MessageType: types.MessageTypeImage,
				FileUrl:     "/uploads/abc.png",
			},
			dbMsg: database.Message{
				Id:          43,
				SenderId:    1,
				ReceiverId:  2,
				MessageType: types.MessageTypeImage,
				FileUrl:     sql.NullString{String: "/uploads/abc.png", Valid: true},
				CreatedAt:   createdAt,
				SenderName:  "Ada",
			},
			expectCreate: true,
			expectedCode: http.StatusCreated,
		},
		{
			name: "missing sender",
			req: CreateMessageRequest{
				Content:    "hello",
				ReceiverId: 2,
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "no content or file",
			req: CreateMessageRequest{
				SenderId:   1,
				ReceiverId: 2,
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "database failure",
			req: CreateMessageRequest{
				Content:    "hello",
				SenderId:   1,
				ReceiverId: 2,
			},
			dbErr:        fmt.Errorf("connection refused"),
			expectCreate: true,
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockPrivChatRepository{}
			if tc.expectCreate {
				db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
					return p.SenderId == tc.req.SenderId && p.ReceiverId == tc.req.ReceiverId
				})).Return(tc.dbMsg, tc.dbErr)
			}

			app := newTestApp(t, db, &mail.MockMailer{})

			req := httptest.NewRequest(http.MethodPost, "/api/messages", jsonBody(t, tc.req))
			rr := httptest.NewRecorder()

			app.createMessage(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)

			if tc.expectedCode == http.StatusCreated {
				var msg types.Message
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
				assert.Equal(t, tc.dbMsg.Id, msg.Id)
				assert.Equal(t, "Ada", msg.Username)
				assert.True(t, createdAt.Equal(msg.CreatedAt))
			}

			db.AssertExpectations(t)
		})
	}
}

func TestGetConversation(t *testing.T) {
	db := &database.MockPrivChatRepository{}
	db.On("GetConversation", 1, 2).Return([]database.Message{
		{
			Id:          1,
			Content:     sql.NullString{String: "hi", Valid: true},
			SenderId:    1,
			ReceiverId:  2,
			MessageType: types.MessageTypeText,
			SenderName:  "Ada",
		},
		{
			Id:          2,
			Content:     sql.NullString{String: "hey", Valid: true},
			SenderId:    2,
			ReceiverId:  1,
			MessageType: types.MessageTypeText,
			SenderName:  "Grace",
		},
	}, nil)

	app := newTestApp(t, db, &mail.MockMailer{})

	req := httptest.NewRequest(http.MethodGet, "/api/messages?user_id1=1&user_id2=2", nil)
	rr := httptest.NewRecorder()

	app.getConversation(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var msgs []types.Message
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "Ada", msgs[0].Username)
	assert.Equal(t, "Grace", msgs[1].Username)
}

func TestGetConversation_BadParams(t *testing.T) {
	app := newTestApp(t, &database.MockPrivChatRepository{}, &mail.MockMailer{})

	req := httptest.NewRequest(http.MethodGet, "/api/messages?user_id1=abc", nil)
	rr := httptest.NewRecorder()

	app.getConversation(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpload(t *testing.T) {
	db := &database.MockPrivChatRepository{}
	db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
		return p.SenderId == 1 && p.ReceiverId == 2 &&
			p.MessageType == types.MessageTypeImage &&
			p.FileUrl != nil && *p.FileUrl == "/uploads/abc123.png"
	})).Return(database.Message{
		Id:          7,
		SenderId:    1,
		ReceiverId:  2,
		MessageType: types.MessageTypeImage,
		FileUrl:     sql.NullString{String: "/uploads/abc123.png", Valid: true},
		SenderName:  "Ada",
	}, nil)

	app := newTestApp(t, db, &mail.MockMailer{})
	app.generateShortId = func() (string, error) {
		return "abc123", nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("sender_id", "1"))
	require.NoError(t, mw.WriteField("receiver_id", "2"))
	fw, err := mw.CreateFormFile("file", "photo.PNG")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()

	app.upload(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var msg types.Message
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
	assert.Equal(t, 7, msg.Id)
	assert.Equal(t, types.MessageTypeImage, msg.MessageType)

	data, err := os.ReadFile(filepath.Join(app.uploadDir, "abc123.png"))
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(data))

	db.AssertExpectations(t)
}

func TestUpload_MissingFile(t *testing.T) {
	app := newTestApp(t, &database.MockPrivChatRepository{}, &mail.MockMailer{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("sender_id", "1"))
	require.NoError(t, mw.WriteField("receiver_id", "2"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()

	app.upload(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func Test_classifyMessageType(t *testing.T) {
	tcases := []struct {
		filename string
		expected string
	}{
		{"photo.png", types.MessageTypeImage},
		{"photo.JPEG", types.MessageTypeImage},
		{"clip.mp4", types.MessageTypeVideo},
		{"clip.MOV", types.MessageTypeVideo},
		{"report.pdf", types.MessageTypeFile},
		{"archive.tar.gz", types.MessageTypeFile},
		{"noextension", types.MessageTypeFile},
	}

	for _, tc := range tcases {
		t.Run(tc.filename, func(t *testing.T) {
			assert.Equal(t, tc.expected, classifyMessageType(tc.filename))
		})
	}
}

func TestHealthz(t *testing.T) {
	tcases := []struct {
		name         string
		pingErr      error
		expectedCode int
	}{
		{
			name:         "healthy",
			expectedCode: http.StatusOK,
		},
		{
			name:         "database unreachable",
			pingErr:      fmt.Errorf("connection refused"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockPrivChatRepository{}
			db.On("Ping").Return(tc.pingErr)

			app := newTestApp(t, db, &mail.MockMailer{})

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rr := httptest.NewRecorder()

			app.healthz(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedCode == http.StatusOK {
				assert.True(t, strings.Contains(rr.Body.String(), "ok"))
			}
		})
	}
}
