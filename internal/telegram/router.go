package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Bottswana/BullyBot/internal/datasource"
	"github.com/Bottswana/BullyBot/internal/domain"
)

// Messenger is the part of *tgbotapi.BotAPI the router uses.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Registry is the subscription store the commands edit.
type Registry interface {
	Add(user string, hour int) (bool, error)
	Remove(user string, hour int) (bool, error)
	HoursFor(user string) []int
}

// Directory resolves configured users.
type Directory interface {
	Users() []string
	Lookup(name string) (string, bool)
	Mention(name string) string
	Module(user, module string) (datasource.Config, bool)
}

// Resolver builds data-source adapters for on-demand checks.
type Resolver interface {
	Build(cfg datasource.Config) (datasource.Adapter, error)
}

// Options tunes the router.
type Options struct {
	Module       string
	Location     *time.Location
	FetchTimeout time.Duration
	DispatchRPS  float64
}

// Router wires Telegram updates to handlers and sends alerts.
type Router struct {
	bot      Messenger
	log      *zap.Logger
	reg      Registry
	dir      Directory
	resolver Resolver
	limiter  *rate.Limiter

	module       string
	loc          *time.Location
	fetchTimeout time.Duration
}

// NewRouter creates a new Telegram router.
func NewRouter(bot Messenger, log *zap.Logger, reg Registry, dir Directory, res Resolver, o Options) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = datasource.DefaultTimeout
	}
	limit, burst := rate.Inf, 1
	if o.DispatchRPS > 0 {
		limit = rate.Limit(o.DispatchRPS)
		if b := int(o.DispatchRPS); b > 1 {
			burst = b
		}
	}
	return &Router{
		bot:          bot,
		log:          log,
		reg:          reg,
		dir:          dir,
		resolver:     res,
		limiter:      rate.NewLimiter(limit, burst),
		module:       strings.ToLower(o.Module),
		loc:          o.Location,
		fetchTimeout: o.FetchTimeout,
	}
}

// HandleUpdate routes a single update to the matching command handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	chatID := msg.Chat.ID
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}
	// "/notify@BullyBot" addresses this bot in a group.
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch cmd {
	case "/start", "/help":
		r.handleHelp(chatID)
	case "/list":
		r.handleList(chatID)
	case "/check":
		r.handleCheck(ctx, chatID, args)
	case "/notify":
		r.handleNotify(chatID, args)
	case "/unnotify":
		r.handleUnnotify(chatID, args)
	case "/hours":
		r.handleHours(chatID, args)
	default:
		// Unknown command: ignore silently
	}
}

// SendAlert renders and sends an alert, paced by the dispatch limiter.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendAlert(ctx context.Context, chatID int64, alert domain.Alert) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("dispatch limiter: %w", err)
	}
	text := renderAlert(r.dir.Mention(alert.User), alert, r.loc)
	if _, err := r.bot.Send(htmlMessage(chatID, text)); err != nil {
		return fmt.Errorf("send alert for %s: %w", alert.User, err)
	}
	return nil
}

func htmlMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return msg
}
