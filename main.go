package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"walletlink/internal/config"
	"walletlink/internal/database"
	"walletlink/internal/router"
	"walletlink/internal/session"
)

func main() {
	// load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// ensure basic directories exist
	if err := ensureDir(filepath.Dir(cfg.Database.Path)); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	// init database
	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Printf("close database: %v", err)
		}
	}()

	// run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// seed operator account
	if err := database.EnsureAdmin(db, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	// 可选的过期会话清理，只做存储卫生；正确性由读取路径上的惰性过期保证
	if cfg.Session.SweepIntervalMinutes > 0 {
		sessions := session.NewStore(db, time.Duration(cfg.Session.TTLHours)*time.Hour)
		interval := time.Duration(cfg.Session.SweepIntervalMinutes) * time.Minute
		go func() {
			for range time.Tick(interval) {
				n, err := sessions.SweepExpired()
				if err != nil {
					log.Printf("sweep expired sessions: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("swept %d expired sessions", n)
				}
			}
		}()
	}

	// setup router
	r := router.SetupRouter(cfg, db)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	log.Printf("server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("run server: %v", err)
	}
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
