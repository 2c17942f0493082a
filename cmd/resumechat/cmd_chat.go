package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/resumechat/internal/auth"
	"github.com/user/resumechat/internal/chat"
	"github.com/user/resumechat/internal/client"
	"github.com/user/resumechat/internal/session"
	"github.com/user/resumechat/internal/state"
	"github.com/user/resumechat/internal/tokens"
	"github.com/user/resumechat/internal/types"
)

const titleLen = 60

const chatHelp = "Type a message to send it; Ctrl-C stops a response.\n" +
	"Commands: /new, /open <id>, /suggest [n], /p <name>, /send, /attach <resume|job> <file|url>,\n" +
	"/detach <resume|job>, /files, /help, /quit"

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Open a chat session (a new one when no id is given)",
	Long:  "Open a chat session. " + chatHelp,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

// apiSession pairs a backend client with a bearer token for one command.
type apiSession struct {
	client *client.Client
	token  string
}

// repl is the interactive chat loop over one View.
type repl struct {
	view     *chat.View
	render   *renderer
	sessions *state.SessionStore
	prompts  *state.PromptStore
	logger   *slog.Logger
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	defer setupLogging(cfg).Close()
	ctx := cmd.Context()
	logger := slog.Default()

	identity, err := newIdentity(ctx, cfg)
	if err != nil {
		return err
	}
	api := newClient(cfg)
	out := cmd.OutOrStdout()
	r := newRenderer(out)

	opts := []chat.Option{
		chat.WithOnUpdate(r.update),
		chat.WithSink(state.NewTranscriptStore(cfg.DataDir)),
		chat.WithDrafts(state.NewDraftStore(cfg.DataDir)),
	}
	if counter, err := tokens.New(cfg.Model); err != nil {
		logger.Warn("token counting disabled", "error", err)
	} else {
		opts = append(opts, chat.WithMeter(counter))
	}

	view := chat.NewView(chat.Deps{
		Identity:    identity,
		History:     api,
		Completions: api,
		Attachments: api,
		Registrar:   api,
		Notifier:    chat.NotifierFunc(r.notice),
	}, logger, opts...)

	go registerPrincipal(ctx, view, identity, logger)

	rp := &repl{
		view:     view,
		render:   r,
		sessions: state.NewSessionStore(cfg.DataDir),
		prompts:  state.NewPromptStore(filepath.Join(cfg.DataDir, "prompts.json")),
		logger:   logger,
	}

	var param string
	if len(args) > 0 {
		param = session.ParsePath(args[0])
	}
	rp.open(ctx, rp.resolve(param))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if ctrl := view.Current(); ctrl != nil && ctrl.Status().InFlight() {
				ctrl.Stop()
				r.line("[stopped]")
				continue
			}
			r.line("(type /quit to exit)")
		}
	}()

	return rp.run(ctx, cmd.InOrStdin())
}

// registerPrincipal upserts the signed-in user's profile from the claims
// of their access token.
func registerPrincipal(ctx context.Context, view *chat.View, identity types.IdentityProvider, logger *slog.Logger) {
	token, err := identity.Token(ctx)
	if err != nil {
		logger.Debug("skip registration", "error", err)
		return
	}
	p, err := auth.PrincipalFromToken(token)
	if err != nil {
		logger.Debug("skip registration", "error", err)
		return
	}
	view.Register(ctx, p)
}

// resolve turns a session parameter into an id, announcing generated ones.
func (rp *repl) resolve(param string) types.SessionID {
	resolver := session.NewResolver(session.NavigatorFunc(func(path string) {
		rp.render.line("new session %s", strings.TrimPrefix(path, "/"))
	}))
	return resolver.Resolve(param)
}

func (rp *repl) open(ctx context.Context, id types.SessionID) {
	rp.render.unprime()
	ctrl := rp.view.Open(ctx, id)
	if _, err := rp.sessions.Touch(ctx, id, ""); err != nil {
		rp.logger.Warn("record session", "error", err)
	}

	rp.render.line("session %s", id)
	for _, kind := range types.ArtifactKinds {
		if a := rp.view.Attachment(kind); a != nil {
			printAttachment(rp.render.w, kind, a)
		}
	}
	msgs := ctrl.Messages()
	rp.render.prime(msgs)
	if len(msgs) == 0 {
		rp.suggest()
	}
	if draft := ctrl.Input(); draft != "" {
		rp.render.line("unsent draft: %q (/send to submit it)", draft)
	}
}

func (rp *repl) suggest() {
	rp.render.line("Try one of these (/suggest <n>):")
	for i, p := range chat.SuggestedPrompts() {
		rp.render.line("  %d. %s", i+1, p)
	}
}

func (rp *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(rp.render.w, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(rp.render.w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := rp.command(ctx, line)
			if err != nil {
				rp.render.line("! %v", err)
			}
			if quit {
				return nil
			}
			continue
		}
		rp.send(ctx, line)
	}
}

// send submits text as the next user turn and waits for the reply.
func (rp *repl) send(ctx context.Context, text string) {
	ctrl := rp.view.Current()
	ctrl.SetInput(text)
	if err := ctrl.Submit(ctx); err != nil {
		if !errors.Is(err, chat.ErrEmptyInput) && !errors.Is(err, chat.ErrBusy) {
			rp.logger.Debug("submit failed", "error", err)
		}
		return
	}
	if err := ctrl.Wait(ctx); err != nil {
		return
	}
	if _, err := rp.sessions.Touch(ctx, ctrl.SessionID(), title(ctrl.Messages())); err != nil {
		rp.logger.Warn("record session", "error", err)
	}
}

func (rp *repl) command(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		rp.render.line("%s", chatHelp)
	case "/new":
		rp.open(ctx, rp.resolve(""))
	case "/open":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /open <session-id>")
		}
		rp.open(ctx, rp.resolve(session.ParsePath(args[0])))
	case "/suggest":
		if len(args) == 0 {
			rp.suggest()
			return false, nil
		}
		prompts := chat.SuggestedPrompts()
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(prompts) {
			return false, fmt.Errorf("pick a suggestion between 1 and %d", len(prompts))
		}
		rp.render.line("you> %s", prompts[n-1])
		rp.send(ctx, prompts[n-1])
	case "/p":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /p <name>")
		}
		p, err := rp.prompts.Get(args[0])
		if err != nil {
			return false, err
		}
		rp.render.line("you> %s", p.Text)
		rp.send(ctx, p.Text)
	case "/send":
		draft := rp.view.Current().Input()
		if draft == "" {
			return false, fmt.Errorf("no draft to send")
		}
		rp.render.line("you> %s", draft)
		rp.send(ctx, draft)
	case "/attach":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: /attach <resume|job> <file|url>")
		}
		kind, err := types.ParseArtifactKind(args[0])
		if err != nil {
			return false, err
		}
		upload, err := openUpload(ctx, kind, args[1])
		if err != nil {
			return false, err
		}
		// Failures are reported through notifications.
		_ = rp.view.UploadAttachment(ctx, kind, upload)
	case "/detach":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /detach <resume|job>")
		}
		kind, err := types.ParseArtifactKind(args[0])
		if err != nil {
			return false, err
		}
		_ = rp.view.DeleteAttachment(ctx, kind)
	case "/files":
		for _, kind := range types.ArtifactKinds {
			printAttachment(rp.render.w, kind, rp.view.Attachment(kind))
		}
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// title derives a session title from its first user message.
func title(t types.Transcript) string {
	for _, m := range t {
		if m.Role != types.RoleUser {
			continue
		}
		text := strings.Join(strings.Fields(m.Text()), " ")
		if r := []rune(text); len(r) > titleLen {
			text = string(r[:titleLen-3]) + "..."
		}
		return text
	}
	return ""
}

func printAttachment(w io.Writer, kind types.ArtifactKind, a *types.Artifact) {
	if a == nil {
		fmt.Fprintf(w, "%s: (none)\n", kind)
		return
	}
	fmt.Fprintf(w, "%s: %s (%s)\n", kind, a.Name, a.ContentType)
}
