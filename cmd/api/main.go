package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/repository"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"golang.org/x/crypto/bcrypt"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	//.envがない環境（本番）では環境変数だけで動く
	if err := godotenv.Load(); err != nil {
		log.Infof(".env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	if err := gormDB.AutoMigrate(
		&model.Shop{},
		&model.Zone{},
		&model.User{},
		&model.Product{},
		&model.InventorySession{},
		&model.CountingRun{},
		&model.CountLine{},
		&model.AuditLog{},
		&model.RefreshToken{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	zoneRepo := infraRepo.NewZoneGormRepository(gormDB)
	sessionRepo := infraRepo.NewSessionGormRepository(gormDB)
	runRepo := infraRepo.NewRunGormRepository(gormDB)
	lineRepo := infraRepo.NewCountLineGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg, userRepo, rtRepo, idGen, clock)
	runUC := usecase.NewRunUsecase(txManager, auditRepo, clock, cfg)
	conflictUC := usecase.NewConflictUsecase(sessionRepo, runRepo, lineRepo, cfg)
	resetUC := usecase.NewResetUsecase(txManager, auditRepo, clock, cfg)
	zoneUC := usecase.NewZoneUsecase(zoneRepo)
	auditUC := usecase.NewAuditUsecase(auditRepo)

	//初期管理者（環境変数があれば一度だけ作る）
	seedAdmin(userRepo)

	//Handler生成
	handlers := server.Handlers{
		Auth:     handler.NewAuthHandler(authUC),
		Run:      handler.NewRunHandler(runUC),
		Conflict: handler.NewConflictHandler(conflictUC),
		Zone:     handler.NewZoneHandler(zoneUC),
		Admin:    handler.NewAdminHandler(resetUC, auditUC, authUC),
	}

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	if err := server.Start(addr, cfg, userRepo, handlers); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// ADMIN_EMAIL/ADMIN_PASSWORD/ADMIN_SHOP_IDが揃っていれば管理者を作る。
// 既にいれば何もしない。
func seedAdmin(userRepo repository.UserRepository) {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	shopIDStr := os.Getenv("ADMIN_SHOP_ID")
	if email == "" || password == "" || shopIDStr == "" {
		return
	}

	shopID, err := strconv.ParseInt(shopIDStr, 10, 64)
	if err != nil {
		log.Warnf("seed admin: ADMIN_SHOP_ID must be number: %v", err)
		return
	}

	ctx := context.Background()

	existing, err := userRepo.FindByEmail(ctx, email)
	if err != nil {
		log.Warnf("seed admin: %v", err)
		return
	}
	if existing != nil {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Warnf("seed admin: %v", err)
		return
	}

	admin := &model.User{
		ShopID:       shopID,
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  "admin",
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Warnf("seed admin: %v", err)
		return
	}
	log.Infof("seed admin created: %s", email)
}
