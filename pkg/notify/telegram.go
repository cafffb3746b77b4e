// Package notify forwards alert log entries to a Telegram chat.
package notify

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/srodi/procguard/pkg/alertlog"
)

const (
	// SendTimeout bounds a single Bot API request.
	SendTimeout = 30 * time.Second
	// DefaultQueueSize is how many notifications may wait for the sender.
	DefaultQueueSize = 64
	// DefaultDrainTimeout is how long Close waits for queued notifications.
	DefaultDrainTimeout = 5 * time.Second
)

// BotAPI abstracts the Telegram bot methods used here.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegram connects to the Bot API with the given token.
func NewTelegram(token string) (BotAPI, error) {
	client := &http.Client{Timeout: SendTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	slog.Info("Telegram notifications enabled", "bot", bot.Self.UserName)
	return bot, nil
}

// Options tune which entries are forwarded.
type Options struct {
	MinSeverity alertlog.Severity
	// Cooldown suppresses an entry whose Key was already seen less than
	// Cooldown ago. A condition that keeps firing every cycle is sent once
	// and again only after it has been quiet for a full Cooldown. Zero
	// forwards every entry.
	Cooldown     time.Duration
	QueueSize    int
	DrainTimeout time.Duration
}

// Notifier is a Sink that records every entry durably and then queues
// qualifying entries for a background sender. Append never waits on Telegram.
type Notifier struct {
	sink   alertlog.Sink
	bot    BotAPI
	chatID int64
	opts   Options
	now    func() time.Time

	mu      sync.Mutex
	seen    map[string]time.Time
	closed  bool
	dropped int

	queue chan tgbotapi.Chattable
	done  chan struct{}
}

// Tee starts the sender goroutine. Call Close to stop it.
func Tee(sink alertlog.Sink, bot BotAPI, chatID int64, opts Options) *Notifier {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	n := &Notifier{
		sink:   sink,
		bot:    bot,
		chatID: chatID,
		opts:   opts,
		now:    time.Now,
		seen:   make(map[string]time.Time),
		queue:  make(chan tgbotapi.Chattable, opts.QueueSize),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// Append records e in the wrapped sink. Telegram delivery is best effort:
// a full queue drops the notification, send errors are only logged.
func (n *Notifier) Append(e alertlog.Entry) error {
	if err := n.sink.Append(e); err != nil {
		return err
	}
	if n.bot == nil || e.Severity < n.opts.MinSeverity {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || n.repeated(e) {
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("[%s] %s", e.Severity, e.Message))
	select {
	case n.queue <- msg:
	default:
		n.dropped++
		slog.Warn("Telegram queue full, dropping notification", "dropped", n.dropped)
	}
	return nil
}

// repeated reports whether e's condition is still within its cooldown and
// refreshes the last time it was seen. Called with mu held.
func (n *Notifier) repeated(e alertlog.Entry) bool {
	if e.Key == "" || n.opts.Cooldown <= 0 {
		return false
	}
	now := n.now()
	for key, last := range n.seen {
		if now.Sub(last) >= n.opts.Cooldown {
			delete(n.seen, key)
		}
	}
	_, ok := n.seen[e.Key]
	n.seen[e.Key] = now
	return ok
}

func (n *Notifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		if _, err := n.bot.Send(msg); err != nil {
			slog.Error("Telegram send failed", "err", err)
		}
	}
}

// Close stops accepting notifications and waits up to DrainTimeout for the
// queue to empty. It does not close the wrapped sink.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	t := time.NewTimer(n.opts.DrainTimeout)
	defer t.Stop()
	select {
	case <-n.done:
		return nil
	case <-t.C:
		return fmt.Errorf("telegram sender still busy after %v", n.opts.DrainTimeout)
	}
}
