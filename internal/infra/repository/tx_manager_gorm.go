package repository

import (
	"context"

	repo "app/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	shops      repo.ShopRepository
	zones      repo.ZoneRepository
	users      repo.UserRepository
	products   repo.ProductRepository
	sessions   repo.SessionRepository
	runs       repo.RunRepository
	countLines repo.CountLineRepository
	auditLogs  repo.AuditLogRepository
}

func (r *txReposGorm) Shops() repo.ShopRepository           { return r.shops }
func (r *txReposGorm) Zones() repo.ZoneRepository           { return r.zones }
func (r *txReposGorm) Users() repo.UserRepository           { return r.users }
func (r *txReposGorm) Products() repo.ProductRepository     { return r.products }
func (r *txReposGorm) Sessions() repo.SessionRepository     { return r.sessions }
func (r *txReposGorm) Runs() repo.RunRepository             { return r.runs }
func (r *txReposGorm) CountLines() repo.CountLineRepository { return r.countLines }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository   { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			shops:      NewShopGormRepository(tx),
			zones:      NewZoneGormRepository(tx),
			users:      NewUserGormRepository(tx),
			products:   NewProductGormRepository(tx),
			sessions:   NewSessionGormRepository(tx),
			runs:       NewRunGormRepository(tx),
			countLines: NewCountLineGormRepository(tx),
			auditLogs:  NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
