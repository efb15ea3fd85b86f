// Package slack is the Slack transport: slash commands arrive over HTTP,
// replies and reminders go out through the Web API.
package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goslack "github.com/slack-go/slack"

	rtsup "remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type Config struct {
	BotToken      string
	SigningSecret string
	ListenAddr    string
	CommandPath   string
}

// api is the subset of *goslack.Client the adapter calls.
type api interface {
	PostMessageContext(ctx context.Context, channelID string, options ...goslack.MsgOption) (string, string, error)
	GetUploadURLExternalContext(ctx context.Context, params goslack.GetUploadURLExternalParameters) (*goslack.GetUploadURLExternalResponse, error)
	CompleteUploadExternalContext(ctx context.Context, params goslack.CompleteUploadExternalParameters) (*goslack.CompleteUploadExternalResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*goslack.User, error)
}

type Adapter struct {
	cfg  Config
	log  logx.Logger
	api  api
	http *http.Client

	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor
	srv     *http.Server

	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("slack bot token is empty")
	}
	if strings.TrimSpace(cfg.SigningSecret) == "" {
		return nil, errors.New("slack signing secret is empty")
	}
	hc := &http.Client{Timeout: 30 * time.Second}
	return newAdapter(cfg, log, goslack.New(cfg.BotToken, goslack.OptionHTTPClient(hc)), hc), nil
}

func newAdapter(cfg Config, log logx.Logger, client api, hc *http.Client) *Adapter {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3000"
	}
	if cfg.CommandPath == "" {
		cfg.CommandPath = "/slack/commands"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, api: client, http: hc}
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	return a
}

func (a *Adapter) Name() string { return "slack" }

// Handler serves the slash command endpoint.
func (a *Adapter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.CommandPath, a.handleSlashCommand)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		a.runMu.Unlock()
		return fmt.Errorf("slack listen %s: %w", a.cfg.ListenAddr, err)
	}
	a.running = true
	a.out.Store(out)
	a.srv = &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 5 * time.Second}
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "slack.adapter"))),
		rtsup.WithCancelOnError(false),
	)
	sup, srv := a.sup, a.srv
	a.runMu.Unlock()

	sup.Go("http.serve", func(c context.Context) error {
		a.log.Info("slash command endpoint listening", logx.String("addr", ln.Addr().String()), logx.String("path", a.cfg.CommandPath))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming commands dropped (channel full)", logx.Uint64("count", n))
				}
			}
		}
	})
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup, srv := a.sup, a.srv
	wasRunning := a.running
	a.running, a.sup, a.srv = false, nil, nil
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()
	if !wasRunning {
		return nil
	}

	a.log.Info("stopping")
	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	if sup != nil {
		sup.Cancel()
		if werr := sup.Wait(ctx); werr != nil && sup.Context().Err() == nil {
			err = errors.Join(err, werr)
		}
	}
	return err
}

func (a *Adapter) handleSlashCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	verifier, err := goslack.NewSecretsVerifier(r.Header, a.cfg.SigningSecret)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if _, err := verifier.Write(body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := verifier.Ensure(); err != nil {
		a.log.Debug("slash command rejected", logx.Err(err))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s, err := goslack.SlashCommandParse(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: messageFromSlash(s)})
	// Ack now; the reply is posted to the channel asynchronously.
	w.WriteHeader(http.StatusOK)
}

func messageFromSlash(s goslack.SlashCommand) *kit.Message {
	text := strings.TrimSpace(s.Command + " " + s.Text)
	return &kit.Message{
		ID:           s.TriggerID,
		ChatID:       s.ChannelID,
		FromID:       s.UserID,
		FromUsername: s.UserName,
		Text:         text,
		// D... channels are direct messages.
		IsGroup: !strings.HasPrefix(s.ChannelID, "D") && s.ChannelName != "directmessage",
	}
}

func (a *Adapter) sendUpdate(up kit.Update) {
	out, _ := a.out.Load().(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	opts := []goslack.MsgOption{goslack.MsgOptionText(text, false), goslack.MsgOptionAsUser(false)}
	if to.ThreadID != "" {
		opts = append(opts, goslack.MsgOptionTS(to.ThreadID))
	}
	channel, ts, err := a.api.PostMessageContext(ctx, to.ChatID, opts...)
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: channel, ThreadID: to.ThreadID, MessageID: ts}, nil
}

// SendPhoto uses the external upload flow: reserve an upload URL, POST the
// bytes, then share the file into the channel with the caption.
func (a *Adapter) SendPhoto(ctx context.Context, to kit.ChatTarget, p kit.Photo) (kit.MessageRef, error) {
	name := p.Filename
	if name == "" {
		name = "image.png"
	}
	up, err := a.api.GetUploadURLExternalContext(ctx, goslack.GetUploadURLExternalParameters{
		FileName: name,
		FileSize: len(p.Data),
	})
	if err != nil {
		return kit.MessageRef{}, fmt.Errorf("slack upload url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.UploadURL, bytes.NewReader(p.Data))
	if err != nil {
		return kit.MessageRef{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := a.http.Do(req)
	if err != nil {
		return kit.MessageRef{}, fmt.Errorf("slack upload: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return kit.MessageRef{}, fmt.Errorf("slack upload: http %d", resp.StatusCode)
	}

	_, err = a.api.CompleteUploadExternalContext(ctx, goslack.CompleteUploadExternalParameters{
		Files:           []goslack.FileSummary{{ID: up.FileID, Title: name}},
		Channel:         to.ChatID,
		InitialComment:  p.Caption,
		ThreadTimestamp: to.ThreadID,
	})
	if err != nil {
		return kit.MessageRef{}, fmt.Errorf("slack complete upload: %w", err)
	}
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: up.FileID}, nil
}

// IsChatAdmin treats workspace admins and owners as chat admins; Slack
// channels have no per-channel admin role.
func (a *Adapter) IsChatAdmin(ctx context.Context, _ string, userID string) (bool, error) {
	u, err := a.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin || u.IsOwner || u.IsPrimaryOwner, nil
}
