// duelwatch 登录后订阅一个房间的事件流，把本地视图的变化打印到日志。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"task-duel/internal/reconciler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		serverURL      string
		email          string
		password       string
		guestName      string
		roomID         string
		join           bool
		initialBackoff time.Duration
		maxBackoff     time.Duration
		maxAttempts    int
		logLevel       string
	)

	flagSet := pflag.NewFlagSet("duelwatch", pflag.ContinueOnError)
	flagSet.StringVar(&serverURL, "server", "http://localhost:8080", "task-duel server base URL")
	flagSet.StringVar(&email, "email", "", "login email")
	flagSet.StringVar(&password, "password", "", "login password")
	flagSet.StringVar(&guestName, "guest", "", "create a guest account with this name instead of logging in")
	flagSet.StringVar(&roomID, "room", "", "room ID to watch (required)")
	flagSet.BoolVar(&join, "join", false, "join the room before watching")
	flagSet.DurationVar(&initialBackoff, "backoff", time.Second, "initial reconnect backoff")
	flagSet.DurationVar(&maxBackoff, "max-backoff", 30*time.Second, "maximum reconnect backoff")
	flagSet.IntVar(&maxAttempts, "max-attempts", 0, "reconnect attempts before giving up (0 = unlimited)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if roomID == "" {
		return errors.New("--room is required")
	}
	if guestName == "" && (email == "" || password == "") {
		return errors.New("either --guest or both --email and --password are required")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 事件流是长连接，不能给 http.Client 设置整体超时
	api := reconciler.NewAPIClient(serverURL, &http.Client{})

	var (
		auth *reconciler.AuthResponse
		err  error
	)
	if guestName != "" {
		auth, err = api.Guest(ctx, guestName)
		if err == nil && auth.Password != "" {
			logger.WithFields(logrus.Fields{"email": auth.Email, "password": auth.Password}).Info("Guest account created")
		}
	} else {
		auth, err = api.Login(ctx, email, password)
	}
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	logCtx := logger.WithFields(logrus.Fields{"user_id": auth.ID, "room_id": roomID})

	if join {
		if _, err := api.JoinRoom(ctx, roomID); err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		logCtx.Info("Joined room")
	}

	store := reconciler.NewStore(auth.ID)
	store.OnChange(func(c reconciler.Change) { logChange(logCtx, store, c) })

	rec := reconciler.New(api, store, reconciler.Options{
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
		MaxAttempts:    maxAttempts,
		Logger:         logCtx,
	})
	if err := rec.Resync(roomID); err != nil {
		return fmt.Errorf("load room: %w", err)
	}

	rec.Connect(ctx, roomID)
	<-ctx.Done()
	rec.Disconnect()
	logCtx.Info("Stopped watching")
	return nil
}

func logChange(logCtx *logrus.Entry, store *reconciler.Store, c reconciler.Change) {
	entry := logCtx.WithField("change", c.Kind)
	switch c.Kind {
	case reconciler.ChangeRoom, reconciler.ChangeParticipants:
		if room, ok := store.Room(); ok {
			names := make([]string, 0, len(room.Participants))
			for _, p := range room.Participants {
				names = append(names, p.Name)
			}
			entry = entry.WithField("participants", names)
		}
	case reconciler.ChangeTasks:
		entry = entry.WithField("tasks", len(store.Tasks()))
	case reconciler.ChangeSubtasks:
		entry = entry.WithFields(logrus.Fields{"task_id": c.ID, "subtasks": len(store.Subtasks(c.ID))})
	case reconciler.ChangeCompletions:
		for _, cp := range store.Completions() {
			if cp.ID == c.ID {
				name := cp.UserID
				if u, ok := store.User(cp.UserID); ok {
					name = u.Name
				}
				entry = entry.WithFields(logrus.Fields{"user": name, "subtask_id": cp.SubtaskID, "progress": cp.Progress})
				break
			}
		}
	}
	entry.Info("View updated")
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `duelwatch follows a task-duel room and logs every change to the local view.

Usage:
  duelwatch --room <id> (--guest <name> | --email <email> --password <password>) [flags]

Flags:
%s`, flagSet.FlagUsages())
}
