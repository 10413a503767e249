package main

import (
	"errors"
	"log"

	"github.com/qynonyq/ton_transfer_signer/internal/app"
	"github.com/qynonyq/ton_transfer_signer/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if _, err := app.InitApp(); err != nil {
		return err
	}
	if app.DB == nil {
		return errors.New("POSTGRES_HOST is not set")
	}

	dbTx := app.DB.Begin()
	if err := dbTx.AutoMigrate(
		&storage.Transfer{},
		&storage.StonfiSwap{},
	); err != nil {
		dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit().Error; err != nil {
		return err
	}

	return nil
}
