package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"taskhub/internal/config"
	"taskhub/internal/logger"
	"taskhub/internal/manager"
	"taskhub/internal/storage"
)

// sender - часть BotAPI, через которую уходят ответы
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      sender
	commands *commands
}

func NewBot(api sender, tm *manager.TaskManager, um *manager.UserManager) *Bot {
	return &Bot{
		api:      api,
		commands: &commands{tasks: tm, users: um, now: time.Now},
	}
}

func (b *Bot) Start(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	logger.Info(ctx, "Бот запущен и слушает сообщения...")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	from := ""
	if msg.From != nil {
		from = msg.From.UserName
	}
	ctx = logger.WithFields(ctx, "chat", msg.Chat.ID, "user", from)
	logger.Debug(ctx, "Получено сообщение", "text", msg.Text)

	if !msg.IsCommand() {
		b.sendMessage(ctx, msg.Chat.ID, "Используйте /help для списка команд.")
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, b.commands.handle(ctx, msg.Command(), msg.CommandArguments()))
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		logger.Error(ctx, err, "Ошибка отправки сообщения")
	}
}

func main() {
	configFile := flag.String("config", "", "YAML config file")
	debug := flag.Bool("debug", false, "log Telegram API requests")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}
	if cfg.TelegramToken == "" {
		fmt.Fprintln(os.Stderr, "Ошибка конфигурации: TELEGRAM_TOKEN не задан")
		os.Exit(1)
	}
	defer logger.Setup(cfg.LogLevel, cfg.LogFile).Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Запуск Telegram-бота...")

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Error(ctx, err, "Ошибка инициализации хранилища")
		return
	}
	defer store.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error(ctx, err, "Ошибка создания бота")
		return
	}
	api.Debug = *debug
	logger.Info(ctx, "Авторизован", "bot", api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := api.GetUpdatesChan(u)
	if err != nil {
		logger.Error(ctx, err, "Ошибка получения обновлений")
		return
	}

	bot := NewBot(api, manager.NewTaskManager(store, nil), manager.NewUserManager(store, nil))
	bot.Start(ctx, updates)
	api.StopReceivingUpdates()
	logger.Info(context.Background(), "Бот остановлен")
}
