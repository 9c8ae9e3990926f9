package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"taskhub/internal/config"
	"taskhub/internal/logger"
	"taskhub/internal/manager"
	"taskhub/internal/models"
	"taskhub/internal/storage"
)

func main() {
	configFile := flag.String("config", "", "YAML config file")
	seedFile := flag.String("seed", "", "seed file (.yaml, .yml or .json)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("❌ Ошибка конфигурации: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Некорректная конфигурация: ", err)
	}
	defer logger.Setup(cfg.LogLevel, cfg.LogFile).Close()

	ctx := context.Background()
	log.Printf("🔄 Подготовка хранилища %s...", cfg.Store)

	// Схема SQLite и индексы Mongo создаются при открытии
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal("❌ Ошибка открытия хранилища: ", err)
	}
	defer store.Close()
	log.Println("✅ Схема и индексы готовы")

	if *seedFile == "" {
		log.Println("🎉 Миграция завершена успешно!")
		return
	}

	seed, err := models.LoadSeed(*seedFile)
	if err != nil {
		log.Fatal("❌ Ошибка чтения начальных данных: ", err)
	}

	res, err := applySeed(ctx, manager.NewTaskManager(store, nil), manager.NewUserManager(store, nil), seed)
	if err != nil {
		store.Close()
		log.Fatal("❌ Ошибка загрузки начальных данных: ", err)
	}
	log.Printf("✅ Пользователей добавлено: %d, пропущено: %d", res.Users, res.SkippedUsers)
	log.Printf("✅ Задач добавлено: %d", res.Tasks)
	log.Println("🎉 Миграция завершена успешно!")
}

type seedResult struct {
	Users        int
	SkippedUsers int
	Tasks        int
}

// applySeed добавляет пользователей и задачи через менеджеры, чтобы ссылки
// между ними были согласованы. Пользователь с уже занятым email пропускается.
func applySeed(ctx context.Context, tm *manager.TaskManager, um *manager.UserManager, seed *models.Seed) (seedResult, error) {
	var res seedResult

	for _, su := range seed.Users {
		_, err := um.Create(ctx, models.UserInput{Name: su.Name, Email: su.Email})
		switch {
		case manager.IsConflict(err):
			log.Printf("⚠️ Пользователь %s уже существует", su.Email)
			res.SkippedUsers++
		case err != nil:
			return res, fmt.Errorf("пользователь %s: %w", su.Email, err)
		default:
			res.Users++
		}
	}

	for i, st := range seed.Tasks {
		in := models.TaskInput{Name: st.Name, Description: st.Description, Completed: st.Completed}

		if st.Deadline != "" {
			d, err := models.ParseTime(st.Deadline)
			if err != nil {
				return res, fmt.Errorf("задача %d (%s): %w", i+1, st.Name, err)
			}
			in.Deadline = &d
		}

		if email := strings.TrimSpace(st.Assignee); email != "" {
			u, err := um.FindByEmail(ctx, email)
			if err != nil {
				return res, fmt.Errorf("задача %d (%s): исполнитель %s: %w", i+1, st.Name, email, err)
			}
			in.AssignedUser = u.ID
		}

		if _, err := tm.Create(ctx, in); err != nil {
			return res, fmt.Errorf("задача %d (%s): %w", i+1, st.Name, err)
		}
		res.Tasks++
	}
	return res, nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: migrate [--config FILE] [--seed FILE]

Creates the SQLite schema or the MongoDB indexes for the configured store
and optionally loads users and tasks from a YAML or JSON seed file.`)
		flag.PrintDefaults()
	}
}
