package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/Bottswana/BullyBot/internal/domain"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(htmlMessage(chatID, text)); err != nil {
		r.log.Warn("send reply failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

// moduleUser resolves a command argument to a configured user with the module enabled.
func (r *Router) moduleUser(chatID int64, arg string) (string, bool) {
	name, ok := r.dir.Lookup(arg)
	if !ok {
		r.sendText(chatID, fmt.Sprintf(userNotFoundFmt, html.EscapeString(arg), r.module))
		return "", false
	}
	if _, ok := r.dir.Module(name, r.module); !ok {
		r.sendText(chatID, fmt.Sprintf(userNotFoundFmt, html.EscapeString(arg), r.module))
		return "", false
	}
	return name, true
}

// userAndHour parses "<user> <hour>" arguments, replying with usage on error.
func (r *Router) userAndHour(chatID int64, args []string, usage string) (string, int, bool) {
	if len(args) != 2 {
		r.sendText(chatID, usage)
		return "", 0, false
	}
	user, ok := r.moduleUser(chatID, args[0])
	if !ok {
		return "", 0, false
	}
	hour, err := domain.ParseHour(args[1])
	if err != nil {
		r.sendText(chatID, badHourText)
		return "", 0, false
	}
	return user, hour, true
}

// --- Commands ---

func (r *Router) handleHelp(chatID int64) {
	r.sendText(chatID, helpText)
}

func (r *Router) handleList(chatID int64) {
	var b strings.Builder
	b.WriteString(listTitle)
	n := 0
	for _, u := range r.dir.Users() {
		if _, ok := r.dir.Module(u, r.module); !ok {
			continue
		}
		n++
		fmt.Fprintf(&b, "\n• %s (%s)", html.EscapeString(u), html.EscapeString(r.dir.Mention(u)))
	}
	if n == 0 {
		r.sendText(chatID, listEmptyText)
		return
	}
	r.sendText(chatID, b.String())
}

func (r *Router) handleCheck(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		r.sendText(chatID, checkUsage)
		return
	}
	user, ok := r.moduleUser(chatID, args[0])
	if !ok {
		return
	}
	cfg, _ := r.dir.Module(user, r.module)

	adapter, err := r.resolver.Build(cfg)
	if err != nil {
		r.log.Error("build data source failed", zap.String("user", user), zap.Error(err))
		r.sendText(chatID, fmt.Sprintf(checkFailedFmt, html.EscapeString(err.Error())))
		return
	}

	fctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	snap, err := adapter.Download(fctx)
	cancel()
	if err != nil {
		r.log.Error("check download failed", zap.String("user", user), zap.Error(err))
		r.sendText(chatID, fmt.Sprintf(checkFailedFmt, html.EscapeString(describeFetchError(err))))
		return
	}
	r.sendText(chatID, renderCheck(r.dir.Mention(user), snap, r.loc))
}

func (r *Router) handleNotify(chatID int64, args []string) {
	user, hour, ok := r.userAndHour(chatID, args, notifyUsage)
	if !ok {
		return
	}
	added, err := r.reg.Add(user, hour)
	if err != nil {
		r.log.Error("add notification failed", zap.String("user", user), zap.Int("hour", hour), zap.Error(err))
		r.sendText(chatID, badHourText)
		return
	}
	format := notifyAddedFmt
	if !added {
		format = notifyExistsFmt
	}
	r.sendText(chatID, fmt.Sprintf(format, html.EscapeString(user), domain.FormatHour(hour)))
}

func (r *Router) handleUnnotify(chatID int64, args []string) {
	user, hour, ok := r.userAndHour(chatID, args, unnotifyUsage)
	if !ok {
		return
	}
	removed, err := r.reg.Remove(user, hour)
	if err != nil {
		r.log.Error("remove notification failed", zap.String("user", user), zap.Int("hour", hour), zap.Error(err))
		r.sendText(chatID, badHourText)
		return
	}
	format := unnotifyRemovedFmt
	if !removed {
		format = unnotifyMissingFmt
	}
	r.sendText(chatID, fmt.Sprintf(format, html.EscapeString(user), domain.FormatHour(hour)))
}

func (r *Router) handleHours(chatID int64, args []string) {
	if len(args) != 1 {
		r.sendText(chatID, hoursUsage)
		return
	}
	user, ok := r.moduleUser(chatID, args[0])
	if !ok {
		return
	}
	hours := r.reg.HoursFor(user)
	if len(hours) == 0 {
		r.sendText(chatID, fmt.Sprintf(hoursNoneFmt, html.EscapeString(user)))
		return
	}
	list := make([]string, 0, len(hours))
	for _, h := range hours {
		list = append(list, domain.FormatHour(h))
	}
	r.sendText(chatID, fmt.Sprintf(hoursFmt, html.EscapeString(user), strings.Join(list, ", ")))
}

func describeFetchError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "the data source took too long to answer"
	case errors.Is(err, domain.ErrConfiguration):
		return "the data source is misconfigured"
	case errors.Is(err, domain.ErrDecode):
		return "the data source returned data I could not read"
	case errors.Is(err, domain.ErrTransientFetch):
		return "the data source is unavailable right now"
	default:
		return err.Error()
	}
}
