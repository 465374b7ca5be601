package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/crypto/bcrypt"

	"github.com/waclient/internal/app"
	"github.com/waclient/internal/config"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/remotestore"
	"github.com/waclient/internal/service"
	"github.com/waclient/internal/session"
	"github.com/waclient/internal/state"
	"github.com/waclient/internal/tui"
	"github.com/waclient/internal/view"
)

func main() {
	configPath := flag.String("config", "", "path to client.yaml (overrides CONFIG_PATH)")
	storeURL := flag.String("store", "", "record store base URL (overrides STORE_URL)")
	user := flag.String("user", "", "log in as this username or email at startup")
	password := flag.String("password", "", "password for -user")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("CONFIG_PATH", *configPath)
	}
	// терминал занят интерфейсом, логи уходят в файл
	if os.Getenv("LOG_FILE") == "" {
		os.Setenv("LOG_FILE", "waclient.log")
	}
	logger.SetPrefix("client")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	defer logger.Sync()
	if *storeURL != "" {
		cfg.StoreURL = *storeURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	sessions, err := session.Open(ctx, cfg.Session)
	cancel()
	if err != nil {
		logger.Errorf("session store: %v", err)
		fmt.Fprintf(os.Stderr, "session store: %v\n", err)
		os.Exit(1)
	}

	clock := service.Clock(time.Now)
	cols := service.NewCollections(remotestore.New(cfg.StoreURL, remotestore.WithTimeout(cfg.RequestTimeout)))
	convs := service.NewConversationService(cols, clock)
	svc := app.Services{
		Auth:          service.NewAuthService(cols, sessions, clock, bcrypt.DefaultCost),
		Users:         service.NewUserService(cols),
		Conversations: convs,
		Messages:      service.NewMessageService(cols, convs, clock),
		Contacts:      service.NewContactService(cols),
		Avatars:       service.NewAvatarService(sessions, cfg.Media.MaxAvatarSize),
		Media:         service.NewMediaService(cfg.Media, nil, clock),
	}

	var program *tea.Program
	a := app.New(state.New(state.Defaults()), svc, app.Options{
		Typing: cfg.Typing,
		OnRender: func(root *view.Node) {
			program.Send(tui.TreeMsg{Root: root})
		},
	})
	program = tea.NewProgram(tui.New(a), tea.WithAltScreen())

	logger.Infof("client: store %s", cfg.StoreURL)
	a.Start()
	if st := a.State(); *user != "" && !st.Authenticated() {
		a.Login(*user, *password)
	}

	if _, err := program.Run(); err != nil {
		logger.Errorf("client: %v", err)
		a.Close()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	a.Close()
}
