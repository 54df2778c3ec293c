package service

import (
	"context"
	"errors"

	"RProject/module/user/model"
	"RProject/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory resolves verified identities to user records. Lookups go to
// the main application's relational schema; this core never writes there.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (*model.UserModel, error)
	GetByUsername(ctx context.Context, username string) (*model.UserModel, error)
}

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) GetByEmail(ctx context.Context, email string) (*model.UserModel, error) {
	return d.getOne(ctx, `SELECT id, username, email FROM users WHERE email = $1`, email)
}

func (d *PgDirectory) GetByUsername(ctx context.Context, username string) (*model.UserModel, error) {
	return d.getOne(ctx, `SELECT id, username, email FROM users WHERE username = $1`, username)
}

func (d *PgDirectory) getOne(ctx context.Context, query, arg string) (*model.UserModel, error) {
	var u model.UserModel
	err := d.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found", "key", arg)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "user lookup", "key", arg)
	}
	return &u, nil
}
