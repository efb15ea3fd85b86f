package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	goslack "github.com/slack-go/slack"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const secret = "s3cr3t"

type fakeAPI struct {
	posted    []string
	uploadURL string
	completed []goslack.CompleteUploadExternalParameters
	users     map[string]*goslack.User
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, _ ...goslack.MsgOption) (string, string, error) {
	f.posted = append(f.posted, channelID)
	return channelID, "1700000000.000100", nil
}

func (f *fakeAPI) GetUploadURLExternalContext(_ context.Context, p goslack.GetUploadURLExternalParameters) (*goslack.GetUploadURLExternalResponse, error) {
	return &goslack.GetUploadURLExternalResponse{UploadURL: f.uploadURL, FileID: "F123"}, nil
}

func (f *fakeAPI) CompleteUploadExternalContext(_ context.Context, p goslack.CompleteUploadExternalParameters) (*goslack.CompleteUploadExternalResponse, error) {
	f.completed = append(f.completed, p)
	return &goslack.CompleteUploadExternalResponse{}, nil
}

func (f *fakeAPI) GetUserInfoContext(_ context.Context, user string) (*goslack.User, error) {
	u, ok := f.users[user]
	if !ok {
		return nil, errors.New("user_not_found")
	}
	return u, nil
}

func signedRequest(t *testing.T, form url.Values, key string) *http.Request {
	t.Helper()
	body := form.Encode()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte("v0:" + ts + ":" + body))
	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestSlashCommandBecomesUpdate(t *testing.T) {
	t.Parallel()
	a := newAdapter(Config{SigningSecret: secret}, logx.Nop(), &fakeAPI{}, http.DefaultClient)
	out := make(chan kit.Update, 1)
	a.out.Store((chan<- kit.Update)(out))

	form := url.Values{
		"command":      {"/reminder"},
		"text":         {"on"},
		"channel_id":   {"C0123"},
		"channel_name": {"general"},
		"user_id":      {"U42"},
		"user_name":    {"alice"},
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, signedRequest(t, form, secret))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case up := <-out:
		m := up.Message
		if m.Text != "/reminder on" || m.ChatID != "C0123" || m.FromID != "U42" || !m.IsGroup {
			t.Fatalf("message = %+v", m)
		}
	default:
		t.Fatal("no update emitted")
	}
}

func TestSlashCommandBadSignature(t *testing.T) {
	t.Parallel()
	a := newAdapter(Config{SigningSecret: secret}, logx.Nop(), &fakeAPI{}, http.DefaultClient)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, signedRequest(t, url.Values{"command": {"/help"}}, "wrong"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDirectMessageIsNotGroup(t *testing.T) {
	t.Parallel()
	m := messageFromSlash(goslack.SlashCommand{Command: "/reminder", ChannelID: "D999", ChannelName: "directmessage"})
	if m.IsGroup {
		t.Fatal("DM must not be a group")
	}
}

func TestSendPhotoUploadsAndShares(t *testing.T) {
	t.Parallel()
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := &fakeAPI{uploadURL: srv.URL}
	a := newAdapter(Config{SigningSecret: secret}, logx.Nop(), f, srv.Client())
	ref, err := a.SendPhoto(context.Background(), kit.ChatTarget{ChatID: "C1"}, kit.Photo{Data: []byte("png"), Caption: "hi"})
	if err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}
	if string(got) != "png" || ref.MessageID != "F123" {
		t.Fatalf("uploaded %q ref %+v", got, ref)
	}
	if len(f.completed) != 1 || f.completed[0].Channel != "C1" || f.completed[0].InitialComment != "hi" {
		t.Fatalf("complete = %+v", f.completed)
	}
}

func TestIsChatAdmin(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{users: map[string]*goslack.User{
		"UADMIN": {ID: "UADMIN", IsAdmin: true},
		"UOWNER": {ID: "UOWNER", IsOwner: true},
		"UPLAIN": {ID: "UPLAIN"},
	}}
	a := newAdapter(Config{SigningSecret: secret}, logx.Nop(), f, http.DefaultClient)
	for id, want := range map[string]bool{"UADMIN": true, "UOWNER": true, "UPLAIN": false} {
		got, err := a.IsChatAdmin(context.Background(), "C1", id)
		if err != nil || got != want {
			t.Fatalf("%s: got %v err %v", id, got, err)
		}
	}
	if _, err := a.IsChatAdmin(context.Background(), "C1", "UNONE"); err == nil {
		t.Fatal("unknown user should fail")
	}
}
